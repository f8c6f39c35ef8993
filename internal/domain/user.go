package domain

import (
	"strings"
	"time"
)

// UserStatus es el estado de ciclo de vida de una cuenta.
type UserStatus string

const (
	UserStatusPendingVerification UserStatus = "PENDING_VERIFICATION"
	UserStatusActive              UserStatus = "ACTIVE"
	UserStatusBanned              UserStatus = "BANNED"
	UserStatusDeleted             UserStatus = "DELETED"
)

// Valid informa si el estado es uno de los conocidos.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusPendingVerification, UserStatusActive, UserStatusBanned, UserStatusDeleted:
		return true
	}
	return false
}

// User es la raiz del agregado: posee la Credential y las identidades sociales.
type User struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	FullName         string           `json:"full_name,omitempty"`
	AvatarURL        string           `json:"avatar_url,omitempty"`
	Status           UserStatus       `json:"status"`
	EmailVerified    bool             `json:"email_verified"`
	Credential       *Credential      `json:"-"`
	SocialIdentities []SocialIdentity `json:"-"`
	CreatedAt        time.Time        `json:"created_at"`
	LastLoginAt      *time.Time       `json:"last_login_at,omitempty"`
}

// CanLogin informa si el estado permite iniciar sesion.
func (u User) CanLogin() bool {
	return u.Status == UserStatusActive || u.Status == UserStatusPendingVerification
}

func (u User) IsBanned() bool { return u.Status == UserStatusBanned }

func (u User) IsDeleted() bool { return u.Status == UserStatusDeleted }

// HasPassword informa si la cuenta tiene credencial local.
func (u User) HasPassword() bool {
	return u.Credential != nil && u.Credential.PasswordHash != ""
}

// IdentityFor devuelve la identidad vinculada para provider, si existe.
func (u User) IdentityFor(provider string) (SocialIdentity, bool) {
	provider = NormalizeProvider(provider)
	for _, si := range u.SocialIdentities {
		if si.Provider == provider {
			return si, true
		}
	}
	return SocialIdentity{}, false
}

// LinkSocialIdentity agrega la identidad al agregado. Un usuario tiene como
// maximo una identidad por proveedor.
func (u *User) LinkSocialIdentity(identity SocialIdentity) error {
	if existing, ok := u.IdentityFor(identity.Provider); ok {
		if existing.ProviderUID == identity.ProviderUID {
			return nil
		}
		return ErrDuplicateProviderIdentity
	}
	identity.UserID = u.ID
	u.SocialIdentities = append(u.SocialIdentities, identity)
	return nil
}

// VerifyEmail marca el email como verificado y activa cuentas pendientes.
func (u *User) VerifyEmail() {
	u.EmailVerified = true
	if u.Status == UserStatusPendingVerification {
		u.Status = UserStatusActive
	}
}

// NormalizeEmail baja a minusculas y recorta espacios.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeProvider devuelve el nombre canonico de un proveedor social.
func NormalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// ValidEmail hace una validacion minima de forma: local@dominio.
func ValidEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n")
}
