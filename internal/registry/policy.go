package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/amlgate/internal/model"
)

// CategoryPolicy decides which category identifiers the registry accepts.
type CategoryPolicy string

const (
	// PolicyStrict accepts only the closed enumeration in model.KnownCategories.
	PolicyStrict CategoryPolicy = "strict"
	// PolicyOpen accepts any identifier matching openCategory. Known names
	// are still folded to their canonical spelling.
	PolicyOpen CategoryPolicy = "open"
)

var openCategory = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

// ParsePolicy maps a config string to a CategoryPolicy. Empty means strict.
func ParsePolicy(s string) (CategoryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyStrict):
		return PolicyStrict, nil
	case string(PolicyOpen):
		return PolicyOpen, nil
	default:
		return "", fmt.Errorf("unknown category policy %q (want strict or open)", s)
	}
}

// Normalize validates a category for writing and returns its canonical form.
func (p CategoryPolicy) Normalize(raw model.Category) (model.Category, error) {
	if known, ok := model.LookupKnownCategory(string(raw)); ok {
		return known, nil
	}
	if p == PolicyOpen {
		s := strings.TrimSpace(string(raw))
		if openCategory.MatchString(s) {
			return model.Category(s), nil
		}
		return "", fmt.Errorf("%w: %q is not a valid identifier", model.ErrInvalidCategory, raw)
	}
	return "", fmt.Errorf("%w: %q is not a known category", model.ErrInvalidCategory, raw)
}

// canonical folds oracle-reported categories for lookup. Unknown names pass
// through unchanged and end up on the All threshold.
func canonical(c model.Category) model.Category {
	if known, ok := model.LookupKnownCategory(string(c)); ok {
		return known
	}
	return c
}
