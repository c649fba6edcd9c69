package search

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/jonwraymond/biasdaily/content"
)

// computeFingerprint generates a stable hash of the bias slice.
// The fingerprint changes when any searchable field or the order of the
// slice changes, so the full-text index is rebuilt only when needed.
func computeFingerprint(biases []content.Bias) string {
	h := sha256.New()
	for _, b := range biases {
		for _, field := range []string{
			b.ID,
			b.Title,
			b.Summary,
			b.Why,
			b.Counter,
			string(b.Category),
		} {
			h.Write([]byte(field))
			h.Write([]byte{0})
		}
		h.Write([]byte{1}) // record separator
	}
	return hex.EncodeToString(h.Sum(nil))
}
