package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"github.com/ppiankov/amlgate/internal/model"
)

// Memory is an in-process Ledger.
type Memory struct {
	mu       sync.Mutex
	balances map[model.AccountID]*uint256.Int
	supply   *uint256.Int
	burned   *uint256.Int
}

// NewMemory creates an empty ledger.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[model.AccountID]*uint256.Int),
		supply:   new(uint256.Int),
		burned:   new(uint256.Int),
	}
}

func (m *Memory) TotalSupply(context.Context) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supply.Clone(), nil
}

func (m *Memory) Burned(context.Context) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.burned.Clone(), nil
}

func (m *Memory) BalanceOf(_ context.Context, id model.AccountID) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[id]; ok {
		return b.Clone(), nil
	}
	return new(uint256.Int), nil
}

func (m *Memory) IsRegistered(_ context.Context, id model.AccountID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.balances[id]
	return ok, nil
}

func (m *Memory) Register(_ context.Context, id model.AccountID) (bool, error) {
	if err := model.ValidateAccountID(id); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[id]; ok {
		return false, nil
	}
	m.balances[id] = new(uint256.Int)
	return true, nil
}

func (m *Memory) Unregister(_ context.Context, id model.AccountID, force bool) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, ok := m.balances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	if !bal.IsZero() && !force {
		return nil, fmt.Errorf("%w: %s holds %s", ErrNonZeroBalance, id, bal.Dec())
	}
	burned := bal.Clone()
	m.supply.Sub(m.supply, burned)
	m.burned.Add(m.burned, burned)
	delete(m.balances, id)
	return burned, nil
}

func (m *Memory) Mint(_ context.Context, id model.AccountID, amount *uint256.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, ok := m.balances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	supply, overflow := new(uint256.Int).AddOverflow(m.supply, amount)
	if overflow {
		return fmt.Errorf("%w: total supply", ErrOverflow)
	}
	bal.Add(bal, amount)
	m.supply = supply
	return nil
}

func (m *Memory) Deposit(_ context.Context, id model.AccountID, amount *uint256.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deposit(id, amount)
}

func (m *Memory) Withdraw(_ context.Context, id model.AccountID, amount *uint256.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.withdraw(id, amount)
}

func (m *Memory) Transfer(_ context.Context, from, to model.AccountID, amount *uint256.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if from == to {
		return ErrSameAccount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check both sides before touching either.
	if _, ok := m.balances[to]; !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, to)
	}
	if err := m.withdraw(from, amount); err != nil {
		return err
	}
	if err := m.deposit(to, amount); err != nil {
		m.balances[from].Add(m.balances[from], amount)
		return err
	}
	return nil
}

func (m *Memory) ResolveTransfer(_ context.Context, sender, receiver model.AccountID, amount, used *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	receiverBal := new(uint256.Int)
	if b, ok := m.balances[receiver]; ok {
		receiverBal = b
	}
	_, senderRegistered := m.balances[sender]

	plan := PlanResolution(amount, used, receiverBal, senderRegistered)
	switch {
	case !plan.Refund.IsZero():
		receiverBal.Sub(receiverBal, plan.Refund)
		m.balances[sender].Add(m.balances[sender], plan.Refund)
	case !plan.Burn.IsZero():
		receiverBal.Sub(receiverBal, plan.Burn)
		m.supply.Sub(m.supply, plan.Burn)
		m.burned.Add(m.burned, plan.Burn)
	}
	return plan.Used, plan.Burn, nil
}

func (m *Memory) Accounts(context.Context) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Account, 0, len(m.balances))
	for id, b := range m.balances {
		out = append(out, Account{ID: id, Balance: b.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) deposit(id model.AccountID, amount *uint256.Int) error {
	bal, ok := m.balances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	if _, overflow := new(uint256.Int).AddOverflow(bal, amount); overflow {
		return fmt.Errorf("%w: %s", ErrOverflow, id)
	}
	bal.Add(bal, amount)
	return nil
}

func (m *Memory) withdraw(id model.AccountID, amount *uint256.Int) error {
	bal, ok := m.balances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, id, bal.Dec(), amount.Dec())
	}
	bal.Sub(bal, amount)
	return nil
}
