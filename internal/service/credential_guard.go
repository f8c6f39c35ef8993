package service

import (
	"time"

	"auth-service/internal/domain"
)

const (
	defaultMaxFailedAttempts = 5
	defaultLockoutDuration   = 30 * time.Minute
)

// CredentialGuard es la maquina de estados de bloqueo por fuerza bruta
// sobre una Credential.
type CredentialGuard struct {
	clock       Clock
	maxAttempts int
	lockFor     time.Duration
}

func NewCredentialGuard(clock Clock, maxAttempts int, lockFor time.Duration) *CredentialGuard {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxFailedAttempts
	}
	if lockFor <= 0 {
		lockFor = defaultLockoutDuration
	}
	return &CredentialGuard{
		clock:       orSystemClock(clock),
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
	}
}

// IsLocked no muta la credencial. El bloqueo vence cuando now > LockedUntil.
func (g *CredentialGuard) IsLocked(cred *domain.Credential) bool {
	if cred == nil || cred.LockedUntil == nil {
		return false
	}
	return !g.clock.Now().After(*cred.LockedUntil)
}

// Evaluate limpia contador y bloqueo si la ventana ya vencio. Devuelve true
// si modifico la credencial.
func (g *CredentialGuard) Evaluate(cred *domain.Credential) bool {
	if cred == nil || cred.LockedUntil == nil {
		return false
	}
	if g.clock.Now().After(*cred.LockedUntil) {
		cred.LockedUntil = nil
		cred.FailedAttempts = 0
		return true
	}
	return false
}

// CheckNotLocked falla con ErrAccountLocked mientras la ventana este activa.
func (g *CredentialGuard) CheckNotLocked(cred *domain.Credential) error {
	if g.IsLocked(cred) {
		return domain.ErrAccountLocked
	}
	return nil
}

// RecordFailure incrementa el contador y bloquea al alcanzar el umbral.
// Devuelve true si este fallo activo el bloqueo.
func (g *CredentialGuard) RecordFailure(cred *domain.Credential) bool {
	if cred == nil {
		return false
	}
	cred.FailedAttempts++
	if cred.FailedAttempts >= g.maxAttempts {
		until := g.clock.Now().Add(g.lockFor)
		cred.LockedUntil = &until
		return true
	}
	return false
}

// RecordSuccess resetea el contador y el bloqueo.
func (g *CredentialGuard) RecordSuccess(cred *domain.Credential) {
	if cred == nil {
		return
	}
	cred.FailedAttempts = 0
	cred.LockedUntil = nil
}
