package owner

import (
	"context"
	"errors"
	"testing"

	"github.com/ppiankov/amlgate/internal/model"
)

type recordingStore struct {
	saved []model.AccountID
	err   error
}

func (s *recordingStore) SaveOwner(_ context.Context, owner model.AccountID) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, owner)
	return nil
}

func TestAssertOwner(t *testing.T) {
	o := New("owner.near", nil)
	if err := o.AssertOwner("owner.near"); err != nil {
		t.Fatalf("expected owner to pass, got %v", err)
	}
	if err := o.AssertOwner("mallory.near"); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := o.AssertOwner(""); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty caller, got %v", err)
	}
}

func TestTransferRevokesOldOwner(t *testing.T) {
	store := &recordingStore{}
	o := New("owner.near", store)

	if err := o.Transfer(context.Background(), "owner.near", "new-owner.near"); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if o.Owner() != "new-owner.near" {
		t.Errorf("expected new-owner.near, got %s", o.Owner())
	}
	if err := o.AssertOwner("owner.near"); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("expected old owner rejected, got %v", err)
	}
	if err := o.AssertOwner("new-owner.near"); err != nil {
		t.Errorf("expected new owner accepted, got %v", err)
	}
	if len(store.saved) != 1 || store.saved[0] != "new-owner.near" {
		t.Errorf("expected owner persisted once, got %v", store.saved)
	}
}

func TestTransferByNonOwnerFails(t *testing.T) {
	o := New("owner.near", nil)
	err := o.Transfer(context.Background(), "mallory.near", "mallory.near")
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if o.Owner() != "owner.near" {
		t.Errorf("expected owner unchanged, got %s", o.Owner())
	}
}

func TestTransferStoreFailureKeepsOwner(t *testing.T) {
	o := New("owner.near", &recordingStore{err: errors.New("disk full")})
	if err := o.Transfer(context.Background(), "owner.near", "next.near"); err == nil {
		t.Fatal("expected store error")
	}
	if o.Owner() != "owner.near" {
		t.Errorf("expected owner unchanged after failed commit, got %s", o.Owner())
	}
}

func TestAuthorizeSkipsFnForNonOwner(t *testing.T) {
	o := New("owner.near", nil)
	called := false
	err := o.Authorize("mallory.near", func() error {
		called = true
		return nil
	})
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if called {
		t.Error("expected fn not to run")
	}
}
