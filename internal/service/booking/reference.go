package booking

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewReference returns "BK", the last 8 digits of now in epoch milliseconds and 4 random
// uppercase alphanumerics. Uniqueness is enforced by the store, not here.
func NewReference(now time.Time) string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = referenceAlphabet[rand.IntN(len(referenceAlphabet))]
	}
	return fmt.Sprintf("BK%08d%s", now.UnixMilli()%100_000_000, suffix)
}
