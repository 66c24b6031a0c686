package oracle

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/amlgate/internal/model"
)

// TableFile is the on-disk form of a static classification table.
type TableFile struct {
	// Default answers accounts without an entry. Nil means unknown
	// accounts fail.
	Default  *model.Classification                    `yaml:"default,omitempty"`
	Accounts map[model.AccountID]model.Classification `yaml:"accounts"`
}

// Table is a reference oracle answering from a YAML file.
type Table struct {
	mu   sync.RWMutex
	path string
	data TableFile
}

// NewTable builds an in-memory table.
func NewTable(data TableFile) (*Table, error) {
	if err := validateTable(data); err != nil {
		return nil, err
	}
	return &Table{data: data}, nil
}

// LoadTable reads a table from path.
func LoadTable(path string) (*Table, error) {
	data, err := readTable(path)
	if err != nil {
		return nil, err
	}
	return &Table{path: path, data: data}, nil
}

// Path returns the backing file, empty for in-memory tables.
func (t *Table) Path() string { return t.path }

// Reload re-reads the backing file. On error the previous table stays.
func (t *Table) Reload() error {
	if t.path == "" {
		return nil
	}
	data, err := readTable(t.path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.data = data
	t.mu.Unlock()
	return nil
}

// Classify returns the table entry for account.
func (t *Table) Classify(ctx context.Context, account model.AccountID) (model.Classification, error) {
	if err := ctx.Err(); err != nil {
		return model.Classification{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	if c, ok := t.data.Accounts[account]; ok {
		return c, nil
	}
	if t.data.Default != nil {
		return *t.data.Default, nil
	}
	return model.Classification{}, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
}

// Len returns the number of explicit entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data.Accounts)
}

func readTable(path string) (TableFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return TableFile{}, fmt.Errorf("read oracle table: %w", err)
	}
	var data TableFile
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return TableFile{}, fmt.Errorf("parse oracle table %s: %w", path, err)
	}
	if err := validateTable(data); err != nil {
		return TableFile{}, fmt.Errorf("oracle table %s: %w", path, err)
	}
	return data, nil
}

func validateTable(data TableFile) error {
	if data.Default != nil {
		if err := Validate(*data.Default); err != nil {
			return fmt.Errorf("default: %w", err)
		}
	}
	for id, c := range data.Accounts {
		if err := Validate(c); err != nil {
			return fmt.Errorf("account %s: %w", id, err)
		}
	}
	return nil
}
