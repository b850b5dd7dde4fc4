// Package requestid issues the correlation ids carried on the
// X-Request-Id header and echoed into logs and error responses.
package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Size is the entropy behind each id in bytes; ids are twice as many
// hex characters.
const Size = 16

// New returns a fresh id. When the entropy source fails the id degrades
// to a timestamp-derived value, so callers always get something usable
// for correlation.
func New() string {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
