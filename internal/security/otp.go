package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
)

// OTPDigits is the length of every issued code.
const OTPDigits = 6

// GenerateOTP returns a uniformly random 6-digit numeric code, leading zeros kept.
func GenerateOTP() (string, error) {
	s := make([]byte, OTPDigits)
	ten := big.NewInt(10)
	for i := range s {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		s[i] = '0' + byte(n.Int64())
	}
	return string(s), nil
}

// HashOTP returns the hex SHA-256 digest of code. It is unsalted so the
// credential row can be matched by phone number and digest.
func HashOTP(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// OTPEqual compares code against a stored digest in constant time.
func OTPEqual(code, storedHash string) bool {
	if code == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashOTP(code)), []byte(storedHash)) == 1
}

// ValidOTPFormat reports whether code is exactly six ASCII digits.
func ValidOTPFormat(code string) bool {
	if len(code) != OTPDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
