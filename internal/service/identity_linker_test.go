package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"auth-service/internal/domain"
	"auth-service/internal/repository"
)

func googleProfile(uid, email string) domain.ProviderProfile {
	return domain.ProviderProfile{ProviderUID: uid, Email: email, DisplayName: "Ana Ruiz", AvatarURL: "https://img/ana.png"}
}

func TestIdentityLinker_CreatesVerifiedUser(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	linker := NewIdentityLinker(users, NewFakeClock(testNow), zap.NewNop())

	res, err := linker.LinkOrCreate(ctx, "Google", googleProfile("g-1", "Ana@Test.com"))
	if err != nil {
		t.Fatalf("link or create: %v", err)
	}
	if res.Outcome != LinkCreated {
		t.Fatalf("expected created, got %s", res.Outcome)
	}
	u := res.User
	if u.Email != "ana@test.com" || !u.EmailVerified || u.Status != domain.UserStatusActive || u.HasPassword() {
		t.Fatalf("unexpected user: %+v", u)
	}
	if si, ok := u.IdentityFor("google"); !ok || si.ProviderUID != "g-1" {
		t.Fatalf("identity missing: %+v", u.SocialIdentities)
	}

	found, ok, err := linker.Resolve(ctx, "GOOGLE", "g-1")
	if err != nil || !ok || found.ID != u.ID {
		t.Fatalf("resolve: %+v %v %v", found, ok, err)
	}
}

func TestIdentityLinker_Idempotent(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	linker := NewIdentityLinker(users, NewFakeClock(testNow), zap.NewNop())

	first, err := linker.LinkOrCreate(ctx, "google", googleProfile("g-1", "ana@test.com"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := linker.LinkOrCreate(ctx, "google", googleProfile("g-1", "ana@test.com"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.User.ID != second.User.ID || second.Outcome != LinkExisting {
		t.Fatalf("expected same user, got %s/%s outcome=%s", first.User.ID, second.User.ID, second.Outcome)
	}
	if len(second.User.SocialIdentities) != 1 {
		t.Fatalf("duplicate identity created: %+v", second.User.SocialIdentities)
	}
}

func TestIdentityLinker_LinksByEmail(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	local := domain.User{
		ID:         "u-local",
		Email:      "ana@test.com",
		Status:     domain.UserStatusActive,
		Credential: domain.NewCredential("hash"),
		CreatedAt:  testNow,
	}
	if err := users.Create(ctx, local); err != nil {
		t.Fatalf("seed: %v", err)
	}
	linker := NewIdentityLinker(users, NewFakeClock(testNow), zap.NewNop())

	res, err := linker.LinkOrCreate(ctx, "google", googleProfile("g-1", "ana@test.com"))
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if res.User.ID != "u-local" || res.Outcome != LinkAttached {
		t.Fatalf("expected attach to local account, got %+v", res)
	}
	stored, _ := users.GetByID(ctx, "u-local")
	if _, ok := stored.IdentityFor("google"); !ok || !stored.HasPassword() {
		t.Fatalf("stored user should keep password and gain identity: %+v", stored)
	}
}

func TestIdentityLinker_SecondIdentitySameProviderRejected(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	linker := NewIdentityLinker(users, NewFakeClock(testNow), zap.NewNop())

	if _, err := linker.LinkOrCreate(ctx, "google", googleProfile("g-1", "ana@test.com")); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := linker.LinkOrCreate(ctx, "google", googleProfile("g-2", "ana@test.com"))
	if !errors.Is(err, domain.ErrDuplicateProviderIdentity) {
		t.Fatalf("expected ErrDuplicateProviderIdentity, got %v", err)
	}
}

func TestIdentityLinker_RequireVerifiedEmail(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	pending := domain.User{
		ID:         "u-pending",
		Email:      "ana@test.com",
		Status:     domain.UserStatusPendingVerification,
		Credential: domain.NewCredential("hash"),
		CreatedAt:  testNow,
	}
	_ = users.Create(ctx, pending)
	linker := NewIdentityLinker(users, NewFakeClock(testNow), zap.NewNop(), WithRequireVerifiedEmail(true))

	_, err := linker.LinkOrCreate(ctx, "google", googleProfile("g-1", "ana@test.com"))
	if !errors.Is(err, domain.ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}
	stored, _ := users.GetByID(ctx, "u-pending")
	if len(stored.SocialIdentities) != 0 {
		t.Fatalf("identity must not be attached")
	}
}

func TestIdentityLinker_InvalidInput(t *testing.T) {
	ctx := context.Background()
	linker := NewIdentityLinker(repository.NewMemoryUserRepository(), NewFakeClock(testNow), zap.NewNop())

	if _, err := linker.LinkOrCreate(ctx, "google", googleProfile("", "ana@test.com")); !errors.Is(err, domain.ErrProviderTokenInvalid) {
		t.Fatalf("empty uid: expected ErrProviderTokenInvalid, got %v", err)
	}
	if _, err := linker.LinkOrCreate(ctx, "google", googleProfile("g-1", "not-an-email")); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("bad email: expected ErrInvalidEmail, got %v", err)
	}
}

func TestIdentityLinker_ConcurrentCallsConverge(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	linker := NewIdentityLinker(users, NewFakeClock(testNow), zap.NewNop())

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := linker.LinkOrCreate(ctx, "google", googleProfile("g-1", "ana@test.com"))
			ids[i], errs[i] = res.User.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("workers resolved different users: %v", ids)
		}
	}
	u, _ := users.GetByEmail(ctx, "ana@test.com")
	if len(u.SocialIdentities) != 1 {
		t.Fatalf("expected a single identity, got %+v", u.SocialIdentities)
	}
}
