// Package creds supplies portal credentials to the automation layer.
// Credentials never enter the conversation ledger or the model prompt;
// the login tool pulls them from here at execution time.
package creds

import (
	"errors"
	"os"
)

// ErrNotConfigured means no credential source produced a usable pair.
var ErrNotConfigured = errors.New("portal credentials not configured")

// Provider yields the portal ID/password pair for a user.
type Provider interface {
	Lookup(userID int64) (id, password string, err error)
}

// EnvProvider reads a single credential pair from the environment. Suits
// single-operator deployments; a multi-user deployment swaps in a
// store-backed provider.
type EnvProvider struct {
	IDVar       string
	PasswordVar string
}

// NewEnvProvider returns a provider over the default variable names.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{IDVar: "SAINT_ID", PasswordVar: "SAINT_PASSWORD"}
}

func (p *EnvProvider) Lookup(int64) (string, string, error) {
	id := os.Getenv(p.IDVar)
	pw := os.Getenv(p.PasswordVar)
	if id == "" || pw == "" {
		return "", "", ErrNotConfigured
	}
	return id, pw, nil
}

// StaticProvider returns a fixed pair. Used in tests and one-shot commands.
type StaticProvider struct {
	ID       string
	Password string
}

func (p StaticProvider) Lookup(int64) (string, string, error) {
	if p.ID == "" || p.Password == "" {
		return "", "", ErrNotConfigured
	}
	return p.ID, p.Password, nil
}
