package domain

import "time"

// RefreshToken es el registro persistido de un refresh token opaco.
// El secreto nunca se guarda, solo su digest.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	FamilyID  string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

func (t RefreshToken) IsRevoked() bool { return t.RevokedAt != nil }

// IsExpired informa si el token vencio en el instante now.
func (t RefreshToken) IsExpired(now time.Time) bool { return now.After(t.ExpiresAt) }

// VerificationTokenType es el proposito de un token de verificacion.
type VerificationTokenType string

const (
	VerificationEmail         VerificationTokenType = "EMAIL_VERIFICATION"
	VerificationPasswordReset VerificationTokenType = "PASSWORD_RESET"
)

func (t VerificationTokenType) Valid() bool {
	return t == VerificationEmail || t == VerificationPasswordReset
}

// VerificationToken es un token tipado, de un solo uso y con vencimiento.
type VerificationToken struct {
	ID        string
	UserID    string
	TokenHash string
	Type      VerificationTokenType
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (t VerificationToken) IsUsed() bool { return t.UsedAt != nil }

func (t VerificationToken) IsExpired(now time.Time) bool { return now.After(t.ExpiresAt) }
