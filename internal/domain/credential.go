package domain

import "time"

// Credential es la credencial de password de un usuario. Solo la muta
// el CredentialGuard (o el reemplazo completo en un reset de password).
type Credential struct {
	PasswordHash   string     `json:"-"`
	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
}

// NewCredential crea una credencial limpia para el digest dado.
func NewCredential(passwordHash string) *Credential {
	return &Credential{PasswordHash: passwordHash}
}

// Clone devuelve una copia profunda.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.LockedUntil != nil {
		t := *c.LockedUntil
		out.LockedUntil = &t
	}
	return &out
}
