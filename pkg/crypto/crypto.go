package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// inviteTokenAlphabet restricts invite tokens to characters that survive
// copy/paste through chat apps and URL query strings unescaped.
const inviteTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// MinInviteTokenLength is the shortest invite token the generator will emit.
const MinInviteTokenLength = 32

// HashPassword returns a bcrypt hash of the supplied password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// HashToken returns the hex-encoded SHA-256 digest of a token. Used to store
// refresh tokens so a database leak does not expose usable credentials.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateInviteToken returns a random mixed-case alphanumeric token of the
// requested length, never shorter than MinInviteTokenLength.
func GenerateInviteToken(length int) (string, error) {
	if length < MinInviteTokenLength {
		length = MinInviteTokenLength
	}

	alphabetSize := big.NewInt(int64(len(inviteTokenAlphabet)))
	token := make([]byte, length)
	for i := range token {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", errors.New("crypto: token generation failed")
		}
		token[i] = inviteTokenAlphabet[idx.Int64()]
	}

	return string(token), nil
}
