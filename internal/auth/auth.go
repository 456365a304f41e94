// Package auth provides admin-user accounts and bearer-token authentication
// for the Pulseboard API.
package auth

import (
	"crypto/subtle"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Errors
var (
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// Role controls what an admin user may do within their organization.
type Role string

const (
	RoleOwner  Role = "Owner"
	RoleAdmin  Role = "Admin"
	RoleViewer Role = "Viewer"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleViewer:
		return true
	}
	return false
}

// User is an admin account belonging to one organization.
type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Role           Role       `json:"role"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

var (
	bcryptPrefix = regexp.MustCompile(`^\$2[aby]\$`)
	sha256Hex    = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// HashPassword returns the stored form of a password. Clients send the
// SHA-256 hex digest of the raw password; the server wraps that digest in
// bcrypt so every stored value carries a unique salt.
func HashPassword(candidate string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(candidate), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a client-supplied digest against the stored hash.
// Two stored formats are accepted: bcrypt(digest), and a legacy bare
// SHA-256 hex digest from accounts that predate the bcrypt wrap. The legacy
// flag tells the caller to rehash and persist the modern form.
func VerifyPassword(stored, candidate string) (ok bool, legacy bool) {
	if bcryptPrefix.MatchString(stored) {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate))
		return err == nil, false
	}

	storedLower := strings.ToLower(stored)
	candidateLower := strings.ToLower(candidate)
	if sha256Hex.MatchString(storedLower) && sha256Hex.MatchString(candidateLower) {
		match := subtle.ConstantTimeCompare([]byte(storedLower), []byte(candidateLower)) == 1
		return match, match
	}

	return false, false
}
