package objectclient

import (
	"path"
	"path/filepath"
	"strings"
)

// QuarantineKey builds the object key under which a failed upload is kept:
// quarantine/<request-id>/<sanitized filename>.
func QuarantineKey(requestID, filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == "/" || name == "" {
		name = "upload.bin"
	}
	return path.Join("quarantine", requestID, name)
}
