package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"github.com/ppiankov/amlgate/internal/executor"
	"github.com/ppiankov/amlgate/internal/gate"
	"github.com/ppiankov/amlgate/internal/ledger"
	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/oracle"
	"github.com/ppiankov/amlgate/internal/owner"
	"github.com/ppiankov/amlgate/internal/receiver"
	"github.com/ppiankov/amlgate/internal/registry"
	"github.com/ppiankov/amlgate/internal/resolver"
)

type burns struct {
	mu    sync.Mutex
	total uint64
	calls int
}

func (b *burns) OnTokensBurned(_ context.Context, _ model.AccountID, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total += amount.Uint64()
	b.calls++
}

type fixture struct {
	svc       *Service
	ledger    *ledger.Memory
	receivers *receiver.Directory
	burns     *burns
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := ledger.NewMemory()
	own := owner.New("owner.near", nil)
	reg, err := registry.New(own, registry.Snapshot{
		Oracle:  "oracle.near",
		Entries: []registry.Entry{{Category: model.CategoryAll, Threshold: 5}},
	})
	if err != nil {
		t.Fatal(err)
	}
	oracles := oracle.NewDirectory()
	oracles.Set("oracle.near", oracle.Func(func(_ context.Context, account model.AccountID) (model.Classification, error) {
		if account == "mixer.near" {
			return model.Classification{Category: model.CategoryMixer, Score: 9}, nil
		}
		return model.Classification{Category: model.CategoryNone, Score: 0}, nil
	}))

	b := &burns{}
	receivers := receiver.NewDirectory()
	res := resolver.New(l, nil, b)
	exec := executor.New(l, receivers, res, executor.WithNotifyTimeout(time.Second))
	g := gate.New(reg, oracles, exec, gate.WithOracleTimeout(time.Second))

	svc := New(Deps{
		Ledger:    l,
		Registry:  reg,
		Ownership: own,
		Gate:      g,
		Resolver:  res,
		Metadata:  Metadata{Name: "Gated Token", Symbol: "GTK", Decimals: 18},
	})
	if err := svc.Bootstrap(context.Background(), uint256.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	return &fixture{svc: svc, ledger: l, receivers: receivers, burns: b}
}

func (f *fixture) balance(t *testing.T, id model.AccountID) uint64 {
	t.Helper()
	b, err := f.svc.BalanceOf(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return b.Uint64()
}

func one() *uint256.Int { return uint256.NewInt(1) }

func TestBootstrapMintsToOwner(t *testing.T) {
	f := newFixture(t)
	if got := f.balance(t, "owner.near"); got != 1000 {
		t.Errorf("owner balance = %d, want 1000", got)
	}
	supply, err := f.svc.TotalSupply(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if supply.Uint64() != 1000 {
		t.Errorf("supply = %s, want 1000", supply.Dec())
	}
}

func TestBootstrapIdempotent(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Bootstrap(context.Background(), uint256.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	supply, _ := f.svc.TotalSupply(context.Background())
	if supply.Uint64() != 1000 {
		t.Errorf("supply after second bootstrap = %s, want 1000", supply.Dec())
	}
}

func TestMetadataSpecDefaulted(t *testing.T) {
	f := newFixture(t)
	m := f.svc.Metadata()
	if m.Spec != MetadataSpec {
		t.Errorf("spec = %q, want %q", m.Spec, MetadataSpec)
	}
	if m.Symbol != "GTK" || m.Decimals != 18 {
		t.Errorf("metadata = %+v", m)
	}
}

func TestTransferApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.RegisterAccount(ctx, "bob.near"); err != nil {
		t.Fatal(err)
	}

	p, err := f.svc.Transfer(ctx, "owner.near", "bob.near", uint256.NewInt(100), one(), "")
	if err != nil {
		t.Fatal(err)
	}
	out, err := p.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.State != model.StateApproved {
		t.Fatalf("state = %s, want approved", out.State)
	}
	if got := f.balance(t, "bob.near"); got != 100 {
		t.Errorf("bob = %d, want 100", got)
	}
}

func TestTransferRejectedLeavesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.RegisterAccount(ctx, "mixer.near"); err != nil {
		t.Fatal(err)
	}

	p, err := f.svc.Transfer(ctx, "owner.near", "mixer.near", uint256.NewInt(100), one(), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	p, err = f.svc.Transfer(ctx, "mixer.near", "owner.near", uint256.NewInt(50), one(), "")
	if err != nil {
		t.Fatal(err)
	}
	out, err := p.Wait(ctx)
	if !errors.Is(err, model.ErrAMLRejected) {
		t.Fatalf("err = %v, want ErrAMLRejected", err)
	}
	if out.State != model.StateRejected {
		t.Errorf("state = %s, want rejected", out.State)
	}
	if got := f.balance(t, "mixer.near"); got != 100 {
		t.Errorf("mixer = %d, want 100", got)
	}
}

func TestTransferAndNotifyRefundsUnused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.RegisterAccount(ctx, "shop.near"); err != nil {
		t.Fatal(err)
	}
	f.receivers.Set("shop.near", receiver.HookFunc(func(_ context.Context, n receiver.Notification) (*uint256.Int, error) {
		if n.Msg != "order-7" {
			t.Errorf("msg = %q", n.Msg)
		}
		return uint256.NewInt(30), nil
	}))

	p, err := f.svc.TransferAndNotify(ctx, "owner.near", "shop.near", uint256.NewInt(100), one(), "", "order-7")
	if err != nil {
		t.Fatal(err)
	}
	out, err := p.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.Settlement.Used.Uint64() != 30 || out.Settlement.Refunded.Uint64() != 70 {
		t.Errorf("settlement used=%s refunded=%s", out.Settlement.Used.Dec(), out.Settlement.Refunded.Dec())
	}
	if got := f.balance(t, "owner.near"); got != 930 {
		t.Errorf("owner = %d, want 930", got)
	}
}

func TestTransferPrecheckSynchronous(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Transfer(context.Background(), "owner.near", "bob.near", uint256.NewInt(10), uint256.NewInt(2), "")
	if !errors.Is(err, model.ErrTransferPrecheck) {
		t.Errorf("err = %v, want ErrTransferPrecheck", err)
	}
}

func TestOwnerOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SetCategoryThreshold(ctx, "mallory", model.CategoryGambling, 3); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("non-owner set: err = %v", err)
	}
	if err := f.svc.SetCategoryThreshold(ctx, "owner.near", model.CategoryGambling, 3); err != nil {
		t.Fatal(err)
	}
	snap := f.svc.ReadRegistry()
	if len(snap.Entries) != 2 {
		t.Fatalf("entries = %+v", snap.Entries)
	}
	if err := f.svc.RemoveCategory(ctx, "owner.near", model.CategoryGambling); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.SetOracleAddress(ctx, "owner.near", "oracle2.near"); err != nil {
		t.Fatal(err)
	}
	if got := f.svc.ReadRegistry().Oracle; got != "oracle2.near" {
		t.Errorf("oracle = %s", got)
	}
	if err := f.svc.SetOracleAddress(ctx, "owner.near", ""); !errors.Is(err, model.ErrInvalidAccount) {
		t.Errorf("empty oracle: err = %v", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.TransferOwnership(ctx, "owner.near", "new.near"); err != nil {
		t.Fatal(err)
	}
	if f.svc.Owner() != "new.near" {
		t.Errorf("owner = %s", f.svc.Owner())
	}
	if err := f.svc.SetCategoryThreshold(ctx, "owner.near", model.CategoryGambling, 1); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("old owner still authorized: %v", err)
	}
}

func TestRegisterAccountIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.RegisterAccount(ctx, "carol.near")
	if err != nil || !created {
		t.Fatalf("first register = %v, %v", created, err)
	}
	created, err = f.svc.RegisterAccount(ctx, "carol.near")
	if err != nil || created {
		t.Errorf("second register = %v, %v", created, err)
	}
}

func TestUnregisterForceBurnsAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.UnregisterAccount(ctx, "owner.near", false); !errors.Is(err, ledger.ErrNonZeroBalance) {
		t.Errorf("unforced: err = %v", err)
	}
	burned, err := f.svc.UnregisterAccount(ctx, "owner.near", true)
	if err != nil {
		t.Fatal(err)
	}
	if burned.Uint64() != 1000 {
		t.Errorf("burned = %s", burned.Dec())
	}
	if f.burns.calls != 1 || f.burns.total != 1000 {
		t.Errorf("burn notifications = %d/%d", f.burns.calls, f.burns.total)
	}
	supply, _ := f.svc.TotalSupply(ctx)
	if !supply.IsZero() {
		t.Errorf("supply = %s, want 0", supply.Dec())
	}
}

func TestBootstrapSkippedAfterFullBurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.UnregisterAccount(ctx, "owner.near", true); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Bootstrap(ctx, uint256.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	supply, _ := f.svc.TotalSupply(ctx)
	if !supply.IsZero() {
		t.Errorf("bootstrap reminted: supply = %s", supply.Dec())
	}
}

func TestCheckClean(t *testing.T) {
	f := newFixture(t)
	cls, err := f.svc.Check(context.Background(), "bob.near")
	if err != nil {
		t.Fatal(err)
	}
	if cls.Category != model.CategoryNone {
		t.Errorf("classification = %s", cls)
	}
}

func TestCheckRejected(t *testing.T) {
	f := newFixture(t)
	cls, err := f.svc.Check(context.Background(), "mixer.near")
	if !errors.Is(err, model.ErrAMLRejected) {
		t.Fatalf("err = %v, want ErrAMLRejected", err)
	}
	if cls.Category != model.CategoryMixer || cls.Score != 9 {
		t.Errorf("classification = %s", cls)
	}
}
