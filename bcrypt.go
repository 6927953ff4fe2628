package membership

import (
	"crypto/rand"
	"errors"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// DefaultRandomPasswordLength is the length of generated placeholder passwords
const DefaultRandomPasswordLength = 30

// DefaultHashCost is the bcrypt work factor for stored passwords
const DefaultHashCost = 14

const randomPasswordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// HashPassword will generate a password hash using the package cost
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultHashCost)
}

// HashPasswordWithCost will generate a password hash with the given bcrypt cost
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// GenerateRandomPassword returns length letters and digits drawn from
// crypto/rand. Members created without a password get one of these so
// the account is unusable until reset.
func GenerateRandomPassword(length int) (string, error) {
	if length <= 0 {
		length = DefaultRandomPasswordLength
	}

	max := big.NewInt(int64(len(randomPasswordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = randomPasswordAlphabet[n.Int64()]
	}

	return string(out), nil
}
