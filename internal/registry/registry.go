package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/amlgate/internal/model"
	"github.com/ppiankov/amlgate/internal/owner"
)

// Entry is one category threshold.
type Entry struct {
	Category  model.Category  `json:"category" yaml:"category"`
	Threshold model.RiskScore `json:"threshold" yaml:"threshold"`
}

// Snapshot is the registry's full readable state.
type Snapshot struct {
	Oracle  model.AccountID `json:"oracle"`
	Entries []Entry         `json:"entries"`
}

// Store persists registry mutations. A write must be durable when the
// method returns; the in-memory view changes only after that.
type Store interface {
	SaveThreshold(ctx context.Context, category model.Category, score model.RiskScore) error
	DeleteThreshold(ctx context.Context, category model.Category) error
	SaveOracle(ctx context.Context, oracle model.AccountID) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore persists every owner mutation through s.
func WithStore(s Store) Option {
	return func(r *Registry) { r.store = s }
}

// WithPolicy sets the category policy. Default is PolicyStrict.
func WithPolicy(p CategoryPolicy) Option {
	return func(r *Registry) { r.policy = p }
}

// Registry holds the oracle address and the per-category risk thresholds.
type Registry struct {
	mu         sync.RWMutex
	oracle     model.AccountID
	thresholds map[model.Category]model.RiskScore
	policy     CategoryPolicy
	owner      *owner.Ownership
	store      Store
}

// New builds a Registry from an initial snapshot. Initial entries are
// validated like owner writes but not persisted.
func New(own *owner.Ownership, initial Snapshot, opts ...Option) (*Registry, error) {
	r := &Registry{
		oracle:     initial.Oracle,
		thresholds: make(map[model.Category]model.RiskScore, len(initial.Entries)),
		policy:     PolicyStrict,
		owner:      own,
	}
	for _, o := range opts {
		o(r)
	}

	for _, e := range initial.Entries {
		cat, err := r.policy.Normalize(e.Category)
		if err != nil {
			return nil, err
		}
		if err := model.ValidateThreshold(int(e.Threshold)); err != nil {
			return nil, fmt.Errorf("category %s: %w", cat, err)
		}
		r.thresholds[cat] = e.Threshold
	}
	return r, nil
}

// SetCategoryThreshold upserts the accepted risk score for a category.
func (r *Registry) SetCategoryThreshold(ctx context.Context, caller model.AccountID, category model.Category, score int) error {
	return r.owner.Authorize(caller, func() error {
		if err := model.ValidateThreshold(score); err != nil {
			return err
		}
		cat, err := r.policy.Normalize(category)
		if err != nil {
			return err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.store != nil {
			if err := r.store.SaveThreshold(ctx, cat, model.RiskScore(score)); err != nil {
				return fmt.Errorf("persist threshold: %w", err)
			}
		}
		r.thresholds[cat] = model.RiskScore(score)
		return nil
	})
}

// RemoveCategory deletes a category threshold. Removing an absent
// category is a no-op.
func (r *Registry) RemoveCategory(ctx context.Context, caller model.AccountID, category model.Category) error {
	return r.owner.Authorize(caller, func() error {
		cat, err := r.policy.Normalize(category)
		if err != nil {
			return err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.thresholds[cat]; !ok {
			return nil
		}
		if r.store != nil {
			if err := r.store.DeleteThreshold(ctx, cat); err != nil {
				return fmt.Errorf("persist removal: %w", err)
			}
		}
		delete(r.thresholds, cat)
		return nil
	})
}

// SetOracleAddress replaces the oracle reference.
func (r *Registry) SetOracleAddress(ctx context.Context, caller model.AccountID, address model.AccountID) error {
	return r.owner.Authorize(caller, func() error {
		if err := model.ValidateAccountID(address); err != nil {
			return fmt.Errorf("oracle address: %w", err)
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.store != nil {
			if err := r.store.SaveOracle(ctx, address); err != nil {
				return fmt.Errorf("persist oracle: %w", err)
			}
		}
		r.oracle = address
		return nil
	})
}

// Oracle returns the current oracle address.
func (r *Registry) Oracle() model.AccountID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.oracle
}

// Policy returns the category policy in effect.
func (r *Registry) Policy() CategoryPolicy {
	return r.policy
}

// Read returns the oracle address and all thresholds sorted by category.
func (r *Registry) Read() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.thresholds))
	for c, s := range r.thresholds {
		entries = append(entries, Entry{Category: c, Threshold: s})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Category < entries[j].Category
	})
	return Snapshot{Oracle: r.oracle, Entries: entries}
}

// Lookup returns the threshold for category, falling back to All.
// Missing both is a configuration error.
func (r *Registry) Lookup(category model.Category) (model.RiskScore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.thresholds[canonical(category)]; ok {
		return s, nil
	}
	if s, ok := r.thresholds[model.CategoryAll]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("%w (category %s)", model.ErrConfiguration, category)
}

// Assess decides a classification. None always passes; otherwise the
// score must not exceed the category threshold.
func (r *Registry) Assess(c model.Classification) error {
	if canonical(c.Category) == model.CategoryNone {
		return nil
	}
	threshold, err := r.Lookup(c.Category)
	if err != nil {
		return err
	}
	if c.Score > threshold {
		return fmt.Errorf("%w: %s score %d exceeds threshold %d", model.ErrAMLRejected, c.Category, c.Score, threshold)
	}
	return nil
}
