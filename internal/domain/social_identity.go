package domain

import "time"

// SocialIdentity vincula un usuario local con el sujeto de un proveedor externo.
// Es inmutable una vez creada.
type SocialIdentity struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Provider    string    `json:"provider"`
	ProviderUID string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProviderProfile es lo que devuelve un verificador de proveedor social.
type ProviderProfile struct {
	ProviderUID string
	Email       string
	DisplayName string
	AvatarURL   string
}
