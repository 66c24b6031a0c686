package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"

	"github.com/ppiankov/amlgate/internal/ledger"
	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/owner"
	"github.com/ppiankov/amlgate/internal/registry"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "amlgate.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func balance(t *testing.T, s *Store, id string) string {
	t.Helper()
	b, err := s.BalanceOf(context.Background(), model.AccountID(id))
	if err != nil {
		t.Fatalf("BalanceOf(%s): %v", id, err)
	}
	return b.Dec()
}

func seed(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		if _, err := s.Register(ctx, model.AccountID(id)); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amlgate.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	seed(t, s, "alice")
	if err := s.Mint(ctx, "alice", uint256.NewInt(500)); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s2, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if got := balance(t, s2, "alice"); got != "500" {
		t.Errorf("balance after reopen = %s, want 500", got)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestTransferAndSupply(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s, "alice", "bob")

	if err := s.Mint(ctx, "alice", uint256.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	if err := s.Transfer(ctx, "alice", "bob", uint256.NewInt(100)); err != nil {
		t.Fatal(err)
	}
	if got := balance(t, s, "alice"); got != "900" {
		t.Errorf("alice = %s, want 900", got)
	}
	if got := balance(t, s, "bob"); got != "100" {
		t.Errorf("bob = %s, want 100", got)
	}
	total, _ := s.TotalSupply(ctx)
	if total.Dec() != "1000" {
		t.Errorf("supply = %s, want 1000", total.Dec())
	}
}

func TestTransferFailuresChangeNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s, "alice", "bob")
	if err := s.Mint(ctx, "alice", uint256.NewInt(50)); err != nil {
		t.Fatal(err)
	}

	err := s.Transfer(ctx, "alice", "bob", uint256.NewInt(51))
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
	err = s.Transfer(ctx, "alice", "carol", uint256.NewInt(10))
	if !errors.Is(err, ledger.ErrNotRegistered) {
		t.Errorf("err = %v, want ErrNotRegistered", err)
	}
	if err := s.Transfer(ctx, "alice", "alice", uint256.NewInt(1)); !errors.Is(err, ledger.ErrSameAccount) {
		t.Errorf("err = %v, want ErrSameAccount", err)
	}
	if err := s.Transfer(ctx, "alice", "bob", new(uint256.Int)); !errors.Is(err, ledger.ErrZeroAmount) {
		t.Errorf("err = %v, want ErrZeroAmount", err)
	}
	if got := balance(t, s, "alice"); got != "50" {
		t.Errorf("alice = %s, want 50 (rolled back)", got)
	}
	if got := balance(t, s, "bob"); got != "0" {
		t.Errorf("bob = %s, want 0", got)
	}
}

func TestRegisterIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.Register(ctx, "alice")
	if err != nil || !created {
		t.Fatalf("first Register = %v, %v", created, err)
	}
	created, err = s.Register(ctx, "alice")
	if err != nil || created {
		t.Fatalf("second Register = %v, %v", created, err)
	}
	if _, err := s.Register(ctx, "NOT VALID"); err == nil {
		t.Error("expected invalid account id error")
	}
}

func TestUnregisterForceBurns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s, "alice")
	if err := s.Mint(ctx, "alice", uint256.NewInt(70)); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Unregister(ctx, "alice", false); !errors.Is(err, ledger.ErrNonZeroBalance) {
		t.Fatalf("err = %v, want ErrNonZeroBalance", err)
	}
	burned, err := s.Unregister(ctx, "alice", true)
	if err != nil {
		t.Fatal(err)
	}
	if burned.Dec() != "70" {
		t.Errorf("burned = %s, want 70", burned.Dec())
	}
	ok, _ := s.IsRegistered(ctx, "alice")
	if ok {
		t.Error("alice still registered")
	}
	total, _ := s.TotalSupply(ctx)
	if !total.IsZero() {
		t.Errorf("supply = %s, want 0", total.Dec())
	}
	b, _ := s.Burned(ctx)
	if b.Dec() != "70" {
		t.Errorf("burned total = %s, want 70", b.Dec())
	}
	if _, err := s.Unregister(ctx, "alice", true); !errors.Is(err, ledger.ErrNotRegistered) {
		t.Errorf("err = %v, want ErrNotRegistered", err)
	}
}

func TestResolveTransferRefund(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s, "alice", "bob")
	if err := s.Mint(ctx, "alice", uint256.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	if err := s.Transfer(ctx, "alice", "bob", uint256.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	used, burned, err := s.ResolveTransfer(ctx, "alice", "bob", uint256.NewInt(100), uint256.NewInt(40))
	if err != nil {
		t.Fatal(err)
	}
	if used.Dec() != "40" || !burned.IsZero() {
		t.Errorf("used=%s burned=%s, want 40/0", used.Dec(), burned.Dec())
	}
	if got := balance(t, s, "alice"); got != "960" {
		t.Errorf("alice = %s, want 960", got)
	}
	if got := balance(t, s, "bob"); got != "40" {
		t.Errorf("bob = %s, want 40", got)
	}
}

func TestResolveTransferBurnsWhenSenderGone(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s, "alice", "bob")
	if err := s.Mint(ctx, "alice", uint256.NewInt(100)); err != nil {
		t.Fatal(err)
	}
	if err := s.Transfer(ctx, "alice", "bob", uint256.NewInt(100)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Unregister(ctx, "alice", false); err != nil {
		t.Fatal(err)
	}

	used, burned, err := s.ResolveTransfer(ctx, "alice", "bob", uint256.NewInt(100), uint256.NewInt(40))
	if err != nil {
		t.Fatal(err)
	}
	if used.Dec() != "100" || burned.Dec() != "60" {
		t.Errorf("used=%s burned=%s, want 100/60", used.Dec(), burned.Dec())
	}
	total, _ := s.TotalSupply(ctx)
	if total.Dec() != "40" {
		t.Errorf("supply = %s, want 40", total.Dec())
	}
}

func TestMintOverflow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed(t, s, "alice")
	if err := s.Mint(ctx, "alice", new(uint256.Int).SetAllOne()); err != nil {
		t.Fatal(err)
	}
	if err := s.Mint(ctx, "alice", uint256.NewInt(1)); !errors.Is(err, ledger.ErrOverflow) {
		t.Errorf("err = %v, want ErrOverflow", err)
	}
}

func TestAccountsSorted(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, "carol", "alice", "bob")
	accts, err := s.Accounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []model.AccountID{"alice", "bob", "carol"}
	if len(accts) != len(want) {
		t.Fatalf("got %d accounts, want %d", len(accts), len(want))
	}
	for i, a := range accts {
		if a.ID != want[i] {
			t.Errorf("accts[%d] = %s, want %s", i, a.ID, want[i])
		}
	}
}

func TestRegistryPersistence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	own := owner.New("admin", s)
	reg, err := registry.New(own, registry.Snapshot{}, registry.WithStore(s))
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.SetCategoryThreshold(ctx, "admin", model.CategoryAll, 5); err != nil {
		t.Fatal(err)
	}
	if err := reg.SetCategoryThreshold(ctx, "admin", "Gambling", 3); err != nil {
		t.Fatal(err)
	}
	if err := reg.SetOracleAddress(ctx, "admin", "oracle.near"); err != nil {
		t.Fatal(err)
	}
	if err := reg.RemoveCategory(ctx, "admin", "Gambling"); err != nil {
		t.Fatal(err)
	}
	if err := own.Transfer(ctx, "admin", "admin2"); err != nil {
		t.Fatal(err)
	}

	snap, err := s.LoadRegistry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Oracle != "oracle.near" {
		t.Errorf("oracle = %q, want oracle.near", snap.Oracle)
	}
	if len(snap.Entries) != 1 || snap.Entries[0].Category != model.CategoryAll || snap.Entries[0].Threshold != 5 {
		t.Errorf("entries = %+v, want [All:5]", snap.Entries)
	}

	got, ok, err := s.LoadOwner(ctx)
	if err != nil || !ok || got != "admin2" {
		t.Errorf("LoadOwner = %q, %v, %v; want admin2", got, ok, err)
	}
}

func TestLoadOwnerFresh(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.LoadOwner(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("fresh store reports an owner")
	}
}

func TestUpSection(t *testing.T) {
	in := "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n"
	got := upSection(in)
	if got != "\nCREATE TABLE a (x INT);\n" {
		t.Errorf("upSection = %q", got)
	}
	if upSection("SELECT 1;") != "SELECT 1;" {
		t.Error("content without markers should pass through")
	}
}
