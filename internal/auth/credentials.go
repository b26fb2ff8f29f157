package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown email and for a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator resolves an email/password pair to an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (Identity, error)
}

// Credential is one row of the credential table.
type Credential struct {
	ID           string
	Email        string
	Role         Role
	PasswordHash string
}

type defaultCredential struct {
	id       string
	email    string
	password string
	role     Role
}

// built-in demo accounts, one per role
var defaultCredentials = []defaultCredential{
	{id: "1", email: "tech@example.com", password: "tech123", role: RoleTechnician},
	{id: "2", email: "dentist@example.com", password: "dentist123", role: RoleDentist},
}

// CredentialTable is a fixed in-memory credential table.
type CredentialTable struct {
	byEmail map[string]Credential
	// compared against when the email is unknown so both failures cost a bcrypt round
	dummyHash []byte
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NewCredentialTable builds a table from the given rows. Emails are matched exactly.
func NewCredentialTable(creds []Credential) (*CredentialTable, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare credential table: %w", err)
	}
	t := &CredentialTable{
		byEmail:   make(map[string]Credential, len(creds)),
		dummyHash: dummy,
	}
	for i, c := range creds {
		if c.Email == "" || c.PasswordHash == "" {
			return nil, fmt.Errorf("credential at index %d is missing email or password hash", i)
		}
		if c.Role != RoleTechnician && c.Role != RoleDentist {
			return nil, fmt.Errorf("credential %s has unknown role %q", c.Email, c.Role)
		}
		if _, dup := t.byEmail[c.Email]; dup {
			return nil, fmt.Errorf("duplicate credential email: %s", c.Email)
		}
		t.byEmail[c.Email] = c
	}
	return t, nil
}

// NewDefaultCredentialTable returns the built-in two-account table.
func NewDefaultCredentialTable() (*CredentialTable, error) {
	creds := make([]Credential, 0, len(defaultCredentials))
	for _, d := range defaultCredentials {
		hash, err := HashPassword(d.password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash default password for %s: %w", d.email, err)
		}
		creds = append(creds, Credential{ID: d.id, Email: d.email, Role: d.role, PasswordHash: hash})
	}
	return NewCredentialTable(creds)
}

func (t *CredentialTable) Authenticate(_ context.Context, email, password string) (Identity, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}
	c, ok := t.byEmail[email]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(t.dummyHash, []byte(password))
		return Identity{}, ErrInvalidCredentials
	}
	if !CheckPassword(c.PasswordHash, password) {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{ID: c.ID, Email: c.Email, Role: c.Role}, nil
}
