// Package fileid provides deterministic document IDs for ingested sources.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const prefix = "doc:"

// FromSource returns a stable catalog ID for a qualified document source
// such as "pdf:report.pdf". The same source always yields the same ID.
func FromSource(source string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(source)))
	return prefix + hex.EncodeToString(hash[:16])
}
