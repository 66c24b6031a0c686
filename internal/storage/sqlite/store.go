// Package sqlite persists the ledger, the risk registry and the owner in a
// single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/holiman/uint256"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/amlgate/internal/ledger"
	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/registry"
	"github.com/ppiankov/amlgate/internal/storage/sqlite/migrations"
)

const (
	settingOwner  = "owner"
	settingOracle = "oracle"
)

// Store is a SQLite-backed ledger.Ledger, registry.Store and owner.Store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time: every ledger mutation is a read-modify-write.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- owner.Store ---

// SaveOwner persists the owner.
func (s *Store) SaveOwner(ctx context.Context, owner model.AccountID) error {
	return s.putSetting(ctx, settingOwner, string(owner))
}

// LoadOwner returns the persisted owner. ok is false on a fresh database.
func (s *Store) LoadOwner(ctx context.Context) (model.AccountID, bool, error) {
	v, ok, err := s.getSetting(ctx, settingOwner)
	return model.AccountID(v), ok, err
}

// --- registry.Store ---

// SaveThreshold upserts a category threshold.
func (s *Store) SaveThreshold(ctx context.Context, category model.Category, score model.RiskScore) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO registry_thresholds (category, threshold, updated_at) VALUES (?, ?, ?)
ON CONFLICT(category) DO UPDATE SET threshold = excluded.threshold, updated_at = excluded.updated_at
`, string(category), int(score), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save threshold: %w", err)
	}
	return nil
}

// DeleteThreshold removes a category threshold if present.
func (s *Store) DeleteThreshold(ctx context.Context, category model.Category) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM registry_thresholds WHERE category = ?`, string(category)); err != nil {
		return fmt.Errorf("delete threshold: %w", err)
	}
	return nil
}

// SaveOracle persists the oracle address.
func (s *Store) SaveOracle(ctx context.Context, oracle model.AccountID) error {
	return s.putSetting(ctx, settingOracle, string(oracle))
}

// LoadRegistry reads the persisted registry state.
func (s *Store) LoadRegistry(ctx context.Context) (registry.Snapshot, error) {
	oracle, _, err := s.getSetting(ctx, settingOracle)
	if err != nil {
		return registry.Snapshot{}, err
	}
	snap := registry.Snapshot{Oracle: model.AccountID(oracle)}

	rows, err := s.db.QueryContext(ctx, `SELECT category, threshold FROM registry_thresholds ORDER BY category`)
	if err != nil {
		return registry.Snapshot{}, fmt.Errorf("load thresholds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cat       string
			threshold int
		)
		if err := rows.Scan(&cat, &threshold); err != nil {
			return registry.Snapshot{}, fmt.Errorf("scan threshold: %w", err)
		}
		snap.Entries = append(snap.Entries, registry.Entry{
			Category:  model.Category(cat),
			Threshold: model.RiskScore(threshold),
		})
	}
	if err := rows.Err(); err != nil {
		return registry.Snapshot{}, fmt.Errorf("iterate thresholds: %w", err)
	}
	return snap, nil
}

// --- ledger.Ledger ---

// TotalSupply returns the current total supply.
func (s *Store) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	total, _, err := readSupply(ctx, s.db)
	return total, err
}

// Burned returns the cumulative burned amount.
func (s *Store) Burned(ctx context.Context) (*uint256.Int, error) {
	_, burned, err := readSupply(ctx, s.db)
	return burned, err
}

// BalanceOf returns the balance of id, zero if unregistered.
func (s *Store) BalanceOf(ctx context.Context, id model.AccountID) (*uint256.Int, error) {
	bal, ok, err := readBalance(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return bal, nil
}

// IsRegistered reports whether id has an account row.
func (s *Store) IsRegistered(ctx context.Context, id model.AccountID) (bool, error) {
	_, ok, err := readBalance(ctx, s.db, id)
	return ok, err
}

// Register creates an empty account. Returns false if it already existed.
func (s *Store) Register(ctx context.Context, id model.AccountID) (bool, error) {
	if err := model.ValidateAccountID(id); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO accounts (account_id, balance, created_at) VALUES (?, '0', ?)`,
		string(id), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("register account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("register account: %w", err)
	}
	return n == 1, nil
}

// Unregister deletes an account, burning its balance when forced.
func (s *Store) Unregister(ctx context.Context, id model.AccountID, force bool) (*uint256.Int, error) {
	var burned *uint256.Int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		bal, ok, err := readBalance(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ledger.ErrNotRegistered, id)
		}
		if !bal.IsZero() && !force {
			return fmt.Errorf("%w: %s holds %s", ledger.ErrNonZeroBalance, id, bal.Dec())
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE account_id = ?`, string(id)); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		if err := burn(ctx, tx, bal); err != nil {
			return err
		}
		burned = bal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return burned, nil
}

// Mint credits id and grows total supply.
func (s *Store) Mint(ctx context.Context, id model.AccountID, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ledger.ErrZeroAmount
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		total, burned, err := readSupply(ctx, tx)
		if err != nil {
			return err
		}
		next, overflow := new(uint256.Int).AddOverflow(total, amount)
		if overflow {
			return fmt.Errorf("%w: total supply", ledger.ErrOverflow)
		}
		if err := credit(ctx, tx, id, amount); err != nil {
			return err
		}
		return writeSupply(ctx, tx, next, burned)
	})
}

// Deposit credits id.
func (s *Store) Deposit(ctx context.Context, id model.AccountID, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ledger.ErrZeroAmount
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return credit(ctx, tx, id, amount)
	})
}

// Withdraw debits id.
func (s *Store) Withdraw(ctx context.Context, id model.AccountID, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ledger.ErrZeroAmount
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return debit(ctx, tx, id, amount)
	})
}

// Transfer moves amount from one account to another in one transaction.
func (s *Store) Transfer(ctx context.Context, from, to model.AccountID, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ledger.ErrZeroAmount
	}
	if from == to {
		return ledger.ErrSameAccount
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := debit(ctx, tx, from, amount); err != nil {
			return err
		}
		return credit(ctx, tx, to, amount)
	})
}

// ResolveTransfer applies ledger.PlanResolution in one transaction.
func (s *Store) ResolveTransfer(ctx context.Context, sender, receiver model.AccountID, amount, used *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	var plan ledger.Resolution
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		receiverBal, _, err := readBalance(ctx, tx, receiver)
		if err != nil {
			return err
		}
		if receiverBal == nil {
			receiverBal = new(uint256.Int)
		}
		_, senderRegistered, err := readBalance(ctx, tx, sender)
		if err != nil {
			return err
		}

		plan = ledger.PlanResolution(amount, used, receiverBal, senderRegistered)
		switch {
		case !plan.Refund.IsZero():
			if err := debit(ctx, tx, receiver, plan.Refund); err != nil {
				return err
			}
			return credit(ctx, tx, sender, plan.Refund)
		case !plan.Burn.IsZero():
			if err := debit(ctx, tx, receiver, plan.Burn); err != nil {
				return err
			}
			return burn(ctx, tx, plan.Burn)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return plan.Used, plan.Burn, nil
}

// Accounts lists all accounts ordered by id.
func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id, balance FROM accounts ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		bal, err := uint256.FromDecimal(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt balance for %s: %w", id, err)
		}
		out = append(out, ledger.Account{ID: model.AccountID(id), Balance: bal})
	}
	return out, rows.Err()
}

// --- helpers ---

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) putSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) getSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load setting %s: %w", key, err)
	}
	return v, true, nil
}

func readBalance(ctx context.Context, q querier, id model.AccountID) (*uint256.Int, bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE account_id = ?`, string(id)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read balance %s: %w", id, err)
	}
	bal, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt balance for %s: %w", id, err)
	}
	return bal, true, nil
}

func readSupply(ctx context.Context, q querier) (*uint256.Int, *uint256.Int, error) {
	var rawTotal, rawBurned string
	if err := q.QueryRowContext(ctx, `SELECT total, burned FROM supply WHERE id = 1`).Scan(&rawTotal, &rawBurned); err != nil {
		return nil, nil, fmt.Errorf("read supply: %w", err)
	}
	total, err := uint256.FromDecimal(rawTotal)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt total supply: %w", err)
	}
	burned, err := uint256.FromDecimal(rawBurned)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt burned total: %w", err)
	}
	return total, burned, nil
}

func writeSupply(ctx context.Context, tx *sql.Tx, total, burned *uint256.Int) error {
	if _, err := tx.ExecContext(ctx, `UPDATE supply SET total = ?, burned = ? WHERE id = 1`, total.Dec(), burned.Dec()); err != nil {
		return fmt.Errorf("write supply: %w", err)
	}
	return nil
}

func writeBalance(ctx context.Context, tx *sql.Tx, id model.AccountID, bal *uint256.Int) error {
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE account_id = ?`, bal.Dec(), string(id)); err != nil {
		return fmt.Errorf("write balance %s: %w", id, err)
	}
	return nil
}

func credit(ctx context.Context, tx *sql.Tx, id model.AccountID, amount *uint256.Int) error {
	bal, ok, err := readBalance(ctx, tx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrNotRegistered, id)
	}
	next, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("%w: %s", ledger.ErrOverflow, id)
	}
	return writeBalance(ctx, tx, id, next)
}

func debit(ctx context.Context, tx *sql.Tx, id model.AccountID, amount *uint256.Int) error {
	bal, ok, err := readBalance(ctx, tx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrNotRegistered, id)
	}
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ledger.ErrInsufficientBalance, id, bal.Dec(), amount.Dec())
	}
	return writeBalance(ctx, tx, id, new(uint256.Int).Sub(bal, amount))
}

func burn(ctx context.Context, tx *sql.Tx, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	total, burned, err := readSupply(ctx, tx)
	if err != nil {
		return err
	}
	return writeSupply(ctx, tx, new(uint256.Int).Sub(total, amount), new(uint256.Int).Add(burned, amount))
}

var (
	_ ledger.Ledger  = (*Store)(nil)
	_ registry.Store = (*Store)(nil)
)
