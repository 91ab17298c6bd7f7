// Package auth verifies the credential token carried in a method request.
package auth

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

// adminHourLayout renders the admin seed hour as YYYYMMDDHH.
const adminHourLayout = "2006010215"

// Config holds the salts used to derive expected tokens.
type Config struct {
	Salt       string `yaml:"salt"`
	AdminLogin string `yaml:"admin_login"`
	AdminSalt  string `yaml:"admin_salt"`
}

// DefaultConfig returns the salts the service ships with.
func DefaultConfig() Config {
	return Config{
		Salt:       "Otus",
		AdminLogin: "admin",
		AdminSalt:  "42",
	}
}

// Credentials is what a caller presents.
type Credentials interface {
	AccountName() string
	LoginName() string
	TokenValue() string
}

// Authenticator compares presented tokens with the expected digest.
type Authenticator struct {
	cfg   Config
	clock func() time.Time
}

// New creates an authenticator. A nil clock means time.Now.
func New(cfg Config, clock func() time.Time) *Authenticator {
	if clock == nil {
		clock = time.Now
	}
	return &Authenticator{cfg: cfg, clock: clock}
}

// IsAdmin reports whether login is the administrator login.
func (a *Authenticator) IsAdmin(login string) bool {
	return login == a.cfg.AdminLogin
}

// Digest returns the expected token for account/login. Admin tokens depend
// only on the current wall-clock hour, so they stay valid for that hour.
func (a *Authenticator) Digest(account, login string) string {
	var seed string
	if a.IsAdmin(login) {
		seed = a.clock().Format(adminHourLayout) + a.cfg.AdminSalt
	} else {
		seed = account + login + a.cfg.Salt
	}
	sum := sha512.Sum512([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// IsAuthentic reports whether the presented token equals the expected digest.
func (a *Authenticator) IsAuthentic(c Credentials) bool {
	expected := a.Digest(c.AccountName(), c.LoginName())
	return subtle.ConstantTimeCompare([]byte(expected), []byte(c.TokenValue())) == 1
}
