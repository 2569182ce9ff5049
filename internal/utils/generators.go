package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// PasswordCharset is the alphabet of generated account passwords.
const PasswordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*"

// GeneratePassword draws length characters from PasswordCharset using crypto/rand.
func GeneratePassword(length int) (string, error) {
	max := big.NewInt(int64(len(PasswordCharset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = PasswordCharset[n.Int64()]
	}
	return string(out), nil
}

// GenerateAccountEmail templates the synthetic mailbox with a millisecond timestamp.
func GenerateAccountEmail(now time.Time) string {
	return fmt.Sprintf("chatgpt.user.%d@gmail.com", now.UnixMilli())
}
