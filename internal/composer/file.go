package composer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"triageterm/internal/model"
)

// OpenFile describes the file at path for upload. The MIME type comes from
// the content; a .txt file whose content sniffs as any text type, or as
// nothing recognisable, is sent as text/plain.
func OpenFile(path string) (model.Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Upload{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return model.Upload{}, fmt.Errorf("%s is a directory", path)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return model.Upload{}, fmt.Errorf("detect type of %s: %w", path, err)
	}

	ct := mt.String()
	if strings.EqualFold(filepath.Ext(path), ".txt") && sniffsAsText(mt) {
		ct = "text/plain"
	}
	return model.Upload{
		Name:     filepath.Base(path),
		MIMEType: ct,
		Size:     info.Size(),
		Open:     func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

func sniffsAsText(mt *mimetype.MIME) bool {
	if mt.Is("application/octet-stream") {
		return true
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
