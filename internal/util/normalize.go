package util

import (
	"net/mail"
	"strings"
)

// ParseSender splits a From header into display name and canonical address.
// The address is lowercased and loses any +tag in its local part. Both are
// empty when no address can be parsed; list headers yield their first valid
// entry.
func ParseSender(from string) (name, address string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		addr = nil
		for _, p := range strings.Split(from, ",") {
			if a, e := mail.ParseAddress(strings.TrimSpace(p)); e == nil {
				addr = a
				break
			}
		}
	}
	if addr == nil {
		return "", ""
	}
	return strings.TrimSpace(addr.Name), canonicalAddress(addr.Address)
}

func canonicalAddress(a string) string {
	a = strings.ToLower(strings.TrimSpace(a))
	at := strings.LastIndexByte(a, '@')
	if at <= 0 {
		return a
	}
	local, domain := a[:at], a[at+1:]
	// Dots stay: only some providers ignore them.
	if plus := strings.IndexByte(local, '+'); plus > -1 {
		local = local[:plus]
	}
	return local + "@" + domain
}
