package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/repo"
)

func TestInsertAndFind(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	u, err := r.Insert(ctx, "a@x.com", "hash-1")
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	got, err := r.FindByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}

	if got.ID != u.ID || got.HashedPassword != "hash-1" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := r.FindByEmail(ctx, "b@x.com"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := r.Insert(ctx, "a@x.com", "hash-2"); !errors.Is(err, repo.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUpdateSetAndClear(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	u, err := r.Insert(ctx, "a@x.com", "hash-1")
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	session := "session-1"
	reset := "reset-1"

	err = r.Update(ctx, u.ID, user.Update{SessionToken: &session, ResetToken: &reset})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	if _, err := r.FindBySessionToken(ctx, "session-1"); err != nil {
		t.Fatalf("FindBySessionToken error: %v", err)
	}

	if _, err := r.FindByResetToken(ctx, "reset-1"); err != nil {
		t.Fatalf("FindByResetToken error: %v", err)
	}

	// clearing one token leaves the other alone
	err = r.Update(ctx, u.ID, user.Update{ClearSessionToken: true})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	if _, err := r.FindBySessionToken(ctx, "session-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected cleared session token, got %v", err)
	}

	if _, err := r.FindByResetToken(ctx, "reset-1"); err != nil {
		t.Fatalf("reset token vanished with the session clear: %v", err)
	}

	if err := r.Update(ctx, "no-such-id", user.Update{ClearSessionToken: true}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestUpdateZeroIsNoop(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	u, err := r.Insert(ctx, "a@x.com", "hash-1")
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	if err := r.Update(ctx, u.ID, user.Update{}); err != nil {
		t.Fatalf("zero update errored: %v", err)
	}

	got, _ := r.FindByEmail(ctx, "a@x.com")

	if got.HashedPassword != "hash-1" || got.SessionToken != nil || got.ResetToken != nil {
		t.Fatalf("zero update changed the record: %+v", got)
	}
}

func TestConsumeResetToken(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	u, err := r.Insert(ctx, "a@x.com", "old-hash")
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	reset := "reset-1"

	if err := r.Update(ctx, u.ID, user.Update{ResetToken: &reset}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	got, err := r.ConsumeResetToken(ctx, "reset-1", "new-hash")
	if err != nil {
		t.Fatalf("ConsumeResetToken error: %v", err)
	}

	if got.HashedPassword != "new-hash" || got.ResetToken != nil {
		t.Fatalf("consume left record inconsistent: %+v", got)
	}

	if _, err := r.ConsumeResetToken(ctx, "reset-1", "other-hash"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected consumed token to be gone, got %v", err)
	}
}

func TestConcurrentInsertSameEmail(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	const callers = 32

	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Insert(ctx, "race@x.com", "hash")
		}(i)
	}

	wg.Wait()

	successes := 0

	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, repo.ErrEmailTaken):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Fatalf("expected exactly 1 insert to win, got %d", successes)
	}
}

func TestCloneDetachesTokens(t *testing.T) {
	ctx := context.Background()
	r := NewUsersRepo()

	u, _ := r.Insert(ctx, "a@x.com", "hash")
	session := "session-1"
	_ = r.Update(ctx, u.ID, user.Update{SessionToken: &session})

	got, _ := r.FindByEmail(ctx, "a@x.com")
	*got.SessionToken = "tampered"

	// mutating the returned copy must not reach the stored record
	if _, err := r.FindBySessionToken(ctx, "session-1"); err != nil {
		t.Fatalf("stored session token changed through a returned copy: %v", err)
	}
}
