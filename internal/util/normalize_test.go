package util

import "testing"

func TestParseSenderAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`Name <User@Example.COM>`, "user@example.com"},
		{`"Name" <user+news@Example.com>`, "user@example.com"},
		{`user.name+tag@EXAMPLE.com`, "user.name@example.com"},
		{`bad address`, ""},
		{`"A" <not-an-email> , "B" <c@D.com>`, "c@d.com"},
		{``, ""},
	}
	for _, tc := range tests {
		if _, got := ParseSender(tc.in); got != tc.want {
			t.Errorf("ParseSender(%q) address = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseSenderName(t *testing.T) {
	name, addr := ParseSender(`"Finance Team" <billing+q1@Corp.example>`)
	if name != "Finance Team" || addr != "billing@corp.example" {
		t.Errorf("ParseSender = %q, %q", name, addr)
	}
	name, addr = ParseSender("ops@example.com")
	if name != "" || addr != "ops@example.com" {
		t.Errorf("ParseSender bare = %q, %q", name, addr)
	}
}
