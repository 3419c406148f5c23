// Package auth is the client's authentication provider: accounts kept in
// the document store, argon2id password verifiers, and an HS256 session
// token persisted locally so a restart keeps the user signed in.
package auth

import "context"

// Identity is an authenticated principal.
type Identity struct {
	UID   string
	Email string
}

// Provider is the session source the client observes.
type Provider interface {
	// ObserveSession calls fn with the current identity (nil when signed
	// out) right away and again on every change.
	ObserveSession(fn func(*Identity)) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	CreateAccount(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	Current() *Identity
}
