package reference

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	alphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLength = 6
)

// New generates a human-readable booking reference of the form
// PREFIX-XXXXXX. The generator gives no uniqueness guarantee on its own;
// callers rely on the database constraint and retry on collision.
func New(prefix string) string {
	suffix := make([]byte, suffixLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failure means the process is in a bad state
			panic(fmt.Sprintf("reference: rand failed: %v", err))
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s", prefix, suffix)
}
