package hash

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
)

// PathLength is the length of the identifiers PathHash returns.
const PathLength = 8

// PathHash returns an 8-character identifier for path. Paths that clean to the same
// value share an identifier.
func PathHash(path string) string {
	if path != "" {
		path = filepath.Clean(path)
	}
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])[:PathLength]
}
