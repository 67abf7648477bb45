package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const RoleOperator = "operator"

var ErrInvalidCredentials = errors.New("invalid credentials")

// Operator is the single account allowed to change the store. The password
// is only ever held as a bcrypt hash.
type Operator struct {
	Name string
	hash []byte
}

// NewOperator accepts either a bcrypt hash or, failing that, a plain password
// that is hashed here.
func NewOperator(name, passwordHash, password string) (*Operator, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, errors.New("operator name required")
	}

	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, err
		}
		return &Operator{Name: name, hash: []byte(passwordHash)}, nil
	}

	password = strings.TrimSpace(password)
	if len(password) < 8 {
		return nil, errors.New("operator password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Operator{Name: name, hash: hash}, nil
}

func (o *Operator) Verify(name, password string) error {
	nameOK := subtle.ConstantTimeCompare([]byte(normalizeName(name)), []byte(o.Name)) == 1

	// The hash is compared even for a wrong name so both paths cost the same.
	err := bcrypt.CompareHashAndPassword(o.hash, []byte(strings.TrimSpace(password)))
	if !nameOK || err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
