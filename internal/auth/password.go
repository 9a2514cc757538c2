package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Password limits. bcrypt ignores everything past 72 bytes, so longer
// passwords are refused rather than silently truncated.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
	defaultCost       = 12
)

var (
	// ErrInvalidPassword is returned by Verify when the password does not match.
	ErrInvalidPassword = errors.New("auth: invalid password")
	// ErrWeakPassword is returned by Hash for passwords outside the limits.
	ErrWeakPassword = errors.New("password too weak")
)

// PasswordService hashes and checks account passwords.
type PasswordService struct {
	cost int
}

// NewPasswordService uses bcrypt cost 12.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest returns a service with a cheap cost
// (bcrypt.MinCost is 4) for tests in other packages.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// CheckStrength reports whether plaintext may be used as a password. The
// returned error wraps ErrWeakPassword and reads well on its own.
func CheckStrength(plaintext string) error {
	if utf8.RuneCountInString(plaintext) < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, MinPasswordLength)
	}
	if len(plaintext) > MaxPasswordBytes {
		return fmt.Errorf("%w: must be %d bytes or fewer", ErrWeakPassword, MaxPasswordBytes)
	}
	return nil
}

// Hash checks plaintext against the limits and returns its bcrypt hash.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if err := CheckStrength(plaintext); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns ErrInvalidPassword on a mismatch. Any other error means
// the stored hash is unusable.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidPassword
	default:
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
}

// NeedsRehash reports whether hash was made with a different cost than p
// uses now.
func (p *PasswordService) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost != p.cost
}
