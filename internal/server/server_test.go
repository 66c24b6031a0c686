package server

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ppiankov/amlgate/internal/app"
	"github.com/ppiankov/amlgate/internal/client"
	"github.com/ppiankov/amlgate/internal/config"
	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/ratelimit"
	"github.com/ppiankov/amlgate/internal/receiver"
)

const oracleTable = `default:
  category: None
  score: 0
accounts:
  casino.near:
    category: Gambling
    score: 7
`

// testServer spins up an in-process gRPC server on a random port and
// returns the app behind it and a dialer for clients.
func testServer(t *testing.T) (*app.App, func(caller model.AccountID) *client.Client) {
	t.Helper()
	return testServerWith(t, Config{})
}

func testServerWith(t *testing.T, srvCfg Config) (*app.App, func(caller model.AccountID) *client.Client) {
	t.Helper()

	table := writeTempFile(t, "oracle.yaml", oracleTable)
	cfg := config.DefaultConfig()
	cfg.Token.TotalSupply = "1000"
	cfg.Registry.Thresholds = map[string]int{"All": 5}
	cfg.Oracles = map[string]config.OracleConfig{"oracle.near": {Table: table}}
	cfg.Gate.OracleTimeout = time.Second
	cfg.Gate.NotifyTimeout = time.Second

	a, err := app.Build(context.Background(), cfg, "", nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	srv := New(a.Service, srvCfg, nil)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.ServeOn(lis)

	var clients []*client.Client
	t.Cleanup(func() {
		for _, c := range clients {
			c.Close()
		}
		srv.GracefulStop()
		a.Close()
	})

	dial := func(caller model.AccountID) *client.Client {
		c, err := client.New(lis.Addr().String(), caller)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		clients = append(clients, c)
		return c
	}
	return a, dial
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestHealthServing(t *testing.T) {
	_, dial := testServer(t)
	ok, err := dial("anyone").Healthy(testCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("health not SERVING")
	}
}

func TestReads(t *testing.T) {
	_, dial := testServer(t)
	c := dial("anyone")
	ctx := testCtx(t)

	supply, err := c.TotalSupply(ctx)
	if err != nil || supply != "1000" {
		t.Errorf("supply = %q, %v", supply, err)
	}
	owner, err := c.Owner(ctx)
	if err != nil || owner != "owner.near" {
		t.Errorf("owner = %q, %v", owner, err)
	}
	meta, err := c.Metadata(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Spec != "ft-1.0.0" || meta.Symbol != "AMLG" || meta.Decimals != 24 {
		t.Errorf("metadata = %+v", meta)
	}
	reg, err := c.ReadRegistry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Oracle != "oracle.near" || reg.Policy != "strict" || len(reg.Entries) != 1 {
		t.Errorf("registry = %+v", reg)
	}
}

func TestTransferApprovedOverRPC(t *testing.T) {
	_, dial := testServer(t)
	ctx := testCtx(t)
	owner := dial("owner.near")

	if _, err := dial("bob.near").RegisterAccount(ctx, ""); err != nil {
		t.Fatal(err)
	}
	res, err := owner.Transfer(ctx, client.Transfer{Receiver: "bob.near", Amount: "100"})
	if err != nil {
		t.Fatal(err)
	}
	if res.State != model.StateApproved || res.Used != "100" || res.TransferID == "" {
		t.Errorf("result = %+v", res)
	}
	bal, err := owner.BalanceOf(ctx, "bob.near")
	if err != nil || bal != "100" {
		t.Errorf("bob balance = %q, %v", bal, err)
	}
}

func TestTransferRejectedOverRPC(t *testing.T) {
	_, dial := testServer(t)
	ctx := testCtx(t)
	if _, err := dial("casino.near").RegisterAccount(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := dial("owner.near").Transfer(ctx, client.Transfer{Receiver: "casino.near", Amount: "50"}); err != nil {
		t.Fatal(err)
	}

	_, err := dial("casino.near").Transfer(ctx, client.Transfer{Receiver: "owner.near", Amount: "10"})
	if !errors.Is(err, model.ErrAMLRejected) {
		t.Errorf("err = %v, want ErrAMLRejected", err)
	}
}

func TestTransferBadDepositOverRPC(t *testing.T) {
	_, dial := testServer(t)
	_, err := dial("owner.near").Transfer(testCtx(t), client.Transfer{Receiver: "bob.near", Amount: "1", Deposit: "2"})
	if !errors.Is(err, model.ErrTransferPrecheck) {
		t.Errorf("err = %v, want ErrTransferPrecheck", err)
	}
}

func TestTransferRateLimitedOverRPC(t *testing.T) {
	_, dial := testServerWith(t, Config{RateLimits: ratelimit.Config{
		"owner.near": {MaxTransfers: 1, Window: time.Hour},
	}})
	ctx := testCtx(t)
	owner := dial("owner.near")
	if _, err := dial("bob.near").RegisterAccount(ctx, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := owner.Transfer(ctx, client.Transfer{Receiver: "bob.near", Amount: "10"}); err != nil {
		t.Fatal(err)
	}
	_, err := owner.Transfer(ctx, client.Transfer{Receiver: "bob.near", Amount: "10"})
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("code = %v, want ResourceExhausted (err %v)", status.Code(err), err)
	}
	bal, err := owner.BalanceOf(ctx, "bob.near")
	if err != nil || bal != "10" {
		t.Errorf("bob balance = %q, %v", bal, err)
	}
}

func TestFailedPrecheckDoesNotUseRateLimit(t *testing.T) {
	_, dial := testServerWith(t, Config{RateLimits: ratelimit.Config{
		"owner.near": {MaxTransfers: 1, Window: time.Hour},
	}})
	ctx := testCtx(t)
	owner := dial("owner.near")
	if _, err := dial("bob.near").RegisterAccount(ctx, ""); err != nil {
		t.Fatal(err)
	}

	bad := []client.Transfer{
		{Receiver: "bob.near", Amount: "10", Deposit: "0"},
		{Receiver: "owner.near", Amount: "10"},
		{Receiver: "bob.near", Amount: "0"},
	}
	for _, tr := range bad {
		if _, err := owner.Transfer(ctx, tr); !errors.Is(err, model.ErrTransferPrecheck) {
			t.Fatalf("transfer %+v: err = %v, want ErrTransferPrecheck", tr, err)
		}
	}
	if _, err := owner.Transfer(ctx, client.Transfer{Receiver: "bob.near", Amount: "10"}); err != nil {
		t.Fatalf("first valid transfer: %v", err)
	}
}

func TestTransferAndNotifyOverRPC(t *testing.T) {
	a, dial := testServer(t)
	ctx := testCtx(t)
	if _, err := dial("shop.near").RegisterAccount(ctx, ""); err != nil {
		t.Fatal(err)
	}
	a.Receivers.Set("shop.near", receiver.HookFunc(func(context.Context, receiver.Notification) (*uint256.Int, error) {
		return uint256.NewInt(40), nil
	}))

	res, err := dial("owner.near").TransferAndNotify(ctx, client.Transfer{Receiver: "shop.near", Amount: "100", Msg: "buy"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Used != "40" || res.Refunded != "60" || res.Burned != "0" {
		t.Errorf("result = %+v", res)
	}
}

func TestOwnerOnlyOverRPC(t *testing.T) {
	_, dial := testServer(t)
	ctx := testCtx(t)

	if err := dial("mallory.near").SetCategoryThreshold(ctx, model.CategoryGambling, 2); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	owner := dial("owner.near")
	if err := owner.SetCategoryThreshold(ctx, model.CategoryGambling, 11); !errors.Is(err, model.ErrInvalidRiskScore) {
		t.Errorf("err = %v, want ErrInvalidRiskScore", err)
	}
	if err := owner.SetCategoryThreshold(ctx, model.CategoryGambling, 2); err != nil {
		t.Fatal(err)
	}
	if err := owner.TransferOwnership(ctx, "heir.near"); err != nil {
		t.Fatal(err)
	}
	if err := owner.RemoveCategory(ctx, model.CategoryGambling); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("old owner remove: err = %v", err)
	}
	if err := dial("heir.near").SetOracleAddress(ctx, "oracle2.near"); err != nil {
		t.Fatal(err)
	}
}

func TestCheckOverRPC(t *testing.T) {
	_, dial := testServer(t)
	ctx := testCtx(t)
	c := dial("anyone")

	cls, err := c.Check(ctx, "bob.near")
	if err != nil {
		t.Fatal(err)
	}
	if cls.Category != model.CategoryNone {
		t.Errorf("classification = %s", cls)
	}
	if _, err := c.Check(ctx, "casino.near"); !errors.Is(err, model.ErrAMLRejected) {
		t.Errorf("err = %v, want ErrAMLRejected", err)
	}
}

func TestUnregisterOverRPC(t *testing.T) {
	_, dial := testServer(t)
	ctx := testCtx(t)
	owner := dial("owner.near")

	if _, err := owner.UnregisterAccount(ctx, false); err == nil {
		t.Error("expected error unregistering a funded account without force")
	}
	burned, err := owner.UnregisterAccount(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if burned != "1000" {
		t.Errorf("burned = %q", burned)
	}
	supply, _ := owner.TotalSupply(ctx)
	if supply != "0" {
		t.Errorf("supply = %q, want 0", supply)
	}
}
