package gate

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var codeSpace = big.NewInt(900000)

// GenerateCode returns a 6-digit access code drawn uniformly from
// [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
