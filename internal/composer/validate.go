package composer

import (
	"fmt"
	"mime"
	"strings"

	"triageterm/internal/model"
	"triageterm/internal/util"
)

const (
	MinTitle    = 2
	MaxTitle    = 255
	MinBody     = 10
	MaxBody     = 10000
	MaxFileSize = 5 * 1024 * 1024
)

// AcceptedMIMETypes are the file types the service can classify.
var AcceptedMIMETypes = []string{"text/plain", "application/pdf"}

func checkTitle(v *ValidationError, title string) {
	switch n := util.SignificantLen(title); {
	case n < MinTitle:
		v.add(FieldTitle, fmt.Sprintf("title must have at least %d characters", MinTitle))
	case n > MaxTitle:
		v.add(FieldTitle, fmt.Sprintf("title must have at most %d characters", MaxTitle))
	}
}

// ValidateText checks a text-mode submission. Whitespace does not count
// towards either length bound.
func ValidateText(title, body string) error {
	v := &ValidationError{}
	checkTitle(v, title)
	switch n := util.SignificantLen(body); {
	case n < MinBody:
		v.add(FieldBody, fmt.Sprintf("text must have at least %d characters", MinBody))
	case n > MaxBody:
		v.add(FieldBody, fmt.Sprintf("text must have at most %d characters", MaxBody))
	}
	return v.orNil()
}

// ValidateFile checks a file-mode submission. file may be nil.
func ValidateFile(title string, file *model.Upload) error {
	v := &ValidationError{}
	checkTitle(v, title)
	switch {
	case file == nil || file.Open == nil:
		v.add(FieldFile, "select a file")
	case !acceptedMIME(file.MIMEType):
		v.add(FieldFile, "only .txt and .pdf files are accepted")
	case file.Size >= MaxFileSize:
		v.add(FieldFile, "file must be smaller than 5 MB")
	}
	return v.orNil()
}

func acceptedMIME(ct string) bool {
	base, _, err := mime.ParseMediaType(ct)
	if err != nil {
		base = strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	}
	base = strings.ToLower(base)
	for _, ok := range AcceptedMIMETypes {
		if base == ok {
			return true
		}
	}
	return false
}
