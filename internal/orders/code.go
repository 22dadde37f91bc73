package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const maxCodeAttempts = 5

var codePattern = regexp.MustCompile(`^MX-\d{4}-[A-Z0-9]{6}$`)

// NewCode returns a customer-facing order code, MX-<year>-XXXXXX.
func NewCode(year int) (string, error) {
	var suffix [6]byte
	n := big.NewInt(int64(len(codeAlphabet)))
	for i := range suffix {
		k, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		suffix[i] = codeAlphabet[k.Int64()]
	}
	return fmt.Sprintf("MX-%04d-%s", year, suffix[:]), nil
}

func ValidCode(code string) bool { return codePattern.MatchString(code) }
