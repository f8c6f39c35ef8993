package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"auth-service/internal/domain"
)

// MemoryUserRepository es una implementacion en memoria de UserRepository
// para desarrollo local y tests.
type MemoryUserRepository struct {
	mu         sync.Mutex
	users      map[string]domain.User
	byEmail    map[string]string
	byIdentity map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:      make(map[string]domain.User),
		byEmail:    make(map[string]string),
		byIdentity: make(map[string]string),
	}
}

func identityKey(provider, providerUID string) string {
	return provider + "\x00" + providerUID
}

func cloneUser(u domain.User) domain.User {
	out := u
	out.Credential = u.Credential.Clone()
	if u.SocialIdentities != nil {
		out.SocialIdentities = append([]domain.SocialIdentity(nil), u.SocialIdentities...)
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		out.LastLoginAt = &t
	}
	return out
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return domain.ErrEmailAlreadyRegistered
	}
	seen := make(map[string]bool)
	for _, si := range user.SocialIdentities {
		if _, exists := r.byIdentity[identityKey(si.Provider, si.ProviderUID)]; exists || seen[si.Provider] {
			return domain.ErrDuplicateProviderIdentity
		}
		seen[si.Provider] = true
	}

	stored := cloneUser(user)
	for i := range stored.SocialIdentities {
		stored.SocialIdentities[i].UserID = user.ID
		r.byIdentity[identityKey(stored.SocialIdentities[i].Provider, stored.SocialIdentities[i].ProviderUID)] = user.ID
	}
	r.users[user.ID] = stored
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	id, ok := r.byEmail[email]
	r.mu.Unlock()
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryUserRepository) GetBySocialIdentity(ctx context.Context, provider, providerUID string) (domain.User, error) {
	r.mu.Lock()
	id, ok := r.byIdentity[identityKey(provider, providerUID)]
	r.mu.Unlock()
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryUserRepository) AttachSocialIdentity(_ context.Context, identity domain.SocialIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[identity.UserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if _, exists := r.byIdentity[identityKey(identity.Provider, identity.ProviderUID)]; exists {
		return domain.ErrDuplicateProviderIdentity
	}
	if _, held := u.IdentityFor(identity.Provider); held {
		return domain.ErrDuplicateProviderIdentity
	}
	u.SocialIdentities = append(u.SocialIdentities, identity)
	r.users[u.ID] = u
	r.byIdentity[identityKey(identity.Provider, identity.ProviderUID)] = u.ID
	return nil
}

func (r *MemoryUserRepository) UpdateCredential(_ context.Context, userID string, fn func(cred *domain.Credential) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok || u.Credential == nil {
		return domain.ErrUserNotFound
	}
	working := u.Credential.Clone()
	if err := fn(working); err != nil {
		return err
	}
	u.Credential = working
	r.users[userID] = u
	return nil
}

func (r *MemoryUserRepository) ReplaceCredential(_ context.Context, userID string, cred domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Credential = cred.Clone()
	r.users[userID] = u
	return nil
}

func (r *MemoryUserRepository) MarkEmailVerified(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.VerifyEmail()
	r.users[userID] = u
	return nil
}

func (r *MemoryUserRepository) UpdateProfile(_ context.Context, userID, fullName, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.FullName = fullName
	u.AvatarURL = avatarURL
	r.users[userID] = u
	return nil
}

func (r *MemoryUserRepository) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.LastLoginAt = &at
	r.users[userID] = u
	return nil
}

// SetStatus cambia el estado de un usuario. Solo lo usan tests y herramientas
// de administracion locales.
func (r *MemoryUserRepository) SetStatus(userID string, status domain.UserStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.Status = status
		r.users[userID] = u
	}
}

var errDuplicateTokenHash = errors.New("duplicate token hash")

// MemoryRefreshTokenRepository es una implementacion en memoria de RefreshTokenRepository.
type MemoryRefreshTokenRepository struct {
	mu     sync.Mutex
	byID   map[string]domain.RefreshToken
	byHash map[string]string
}

func NewMemoryRefreshTokenRepository() *MemoryRefreshTokenRepository {
	return &MemoryRefreshTokenRepository{
		byID:   make(map[string]domain.RefreshToken),
		byHash: make(map[string]string),
	}
}

func (r *MemoryRefreshTokenRepository) Create(_ context.Context, token domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(token)
}

func (r *MemoryRefreshTokenRepository) insertLocked(token domain.RefreshToken) error {
	if _, exists := r.byHash[token.TokenHash]; exists {
		return errDuplicateTokenHash
	}
	r.byID[token.ID] = token
	r.byHash[token.TokenHash] = token.ID
	return nil
}

func (r *MemoryRefreshTokenRepository) GetByHash(_ context.Context, tokenHash string) (domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHash[tokenHash]
	if !ok {
		return domain.RefreshToken{}, domain.ErrTokenNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRefreshTokenRepository) Rotate(_ context.Context, oldID string, revokedAt time.Time, successor domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[oldID]
	if !ok || old.RevokedAt != nil {
		return domain.ErrTokenRevoked
	}
	if _, exists := r.byHash[successor.TokenHash]; exists {
		return errDuplicateTokenHash
	}
	old.RevokedAt = &revokedAt
	r.byID[oldID] = old
	return r.insertLocked(successor)
}

func (r *MemoryRefreshTokenRepository) Revoke(_ context.Context, id string, revokedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byID[id]; ok && t.RevokedAt == nil {
		t.RevokedAt = &revokedAt
		r.byID[id] = t
	}
	return nil
}

func (r *MemoryRefreshTokenRepository) RevokeFamily(_ context.Context, familyID string, revokedAt time.Time) (int64, error) {
	return r.revokeWhere(revokedAt, func(t domain.RefreshToken) bool { return t.FamilyID == familyID }), nil
}

func (r *MemoryRefreshTokenRepository) RevokeAllForUser(_ context.Context, userID string, revokedAt time.Time) (int64, error) {
	return r.revokeWhere(revokedAt, func(t domain.RefreshToken) bool { return t.UserID == userID }), nil
}

func (r *MemoryRefreshTokenRepository) revokeWhere(revokedAt time.Time, match func(domain.RefreshToken) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.byID {
		if t.RevokedAt == nil && match(t) {
			at := revokedAt
			t.RevokedAt = &at
			r.byID[id] = t
			n++
		}
	}
	return n
}

// MemoryVerificationTokenRepository es una implementacion en memoria de
// VerificationTokenRepository.
type MemoryVerificationTokenRepository struct {
	mu     sync.Mutex
	byID   map[string]domain.VerificationToken
	byHash map[string]string
}

func NewMemoryVerificationTokenRepository() *MemoryVerificationTokenRepository {
	return &MemoryVerificationTokenRepository{
		byID:   make(map[string]domain.VerificationToken),
		byHash: make(map[string]string),
	}
}

func (r *MemoryVerificationTokenRepository) Replace(_ context.Context, token domain.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.byID {
		if t.UserID == token.UserID && t.Type == token.Type && t.UsedAt == nil {
			delete(r.byID, id)
			delete(r.byHash, t.TokenHash)
		}
	}
	r.byID[token.ID] = token
	r.byHash[token.TokenHash] = token.ID
	return nil
}

func (r *MemoryVerificationTokenRepository) GetByHash(_ context.Context, tokenHash string) (domain.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHash[tokenHash]
	if !ok {
		return domain.VerificationToken{}, domain.ErrTokenNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryVerificationTokenRepository) MarkUsed(_ context.Context, id string, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return domain.ErrTokenNotFound
	}
	if t.UsedAt != nil {
		return domain.ErrTokenAlreadyUsed
	}
	t.UsedAt = &usedAt
	r.byID[id] = t
	return nil
}
