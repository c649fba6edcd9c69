package content

import (
	"fmt"
	"strings"
)

// Category groups biases by the kind of reasoning they distort.
type Category string

const (
	CategoryDecision   Category = "decision"
	CategoryMemory     Category = "memory"
	CategorySocial     Category = "social"
	CategoryPerception Category = "perception"
	CategoryMisc       Category = "misc"
)

var categoryLabels = map[Category]string{
	CategoryDecision:   "Decision Making",
	CategoryMemory:     "Memory",
	CategorySocial:     "Social",
	CategoryPerception: "Perception",
	CategoryMisc:       "Miscellaneous",
}

// Categories returns every known category in display order.
func Categories() []Category {
	return []Category{
		CategoryDecision,
		CategoryMemory,
		CategorySocial,
		CategoryPerception,
		CategoryMisc,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human-readable name of the category.
// Unknown categories are returned verbatim.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// ParseCategory resolves a category from its identifier or its label,
// ignoring case and surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, c.Label()) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidBias, s)
}

// Source records where a bias came from.
type Source string

const (
	SourceCore Source = "core"
	SourceUser Source = "user"
)

// Bias is a single cognitive-bias entry.
type Bias struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
	Summary  string   `json:"summary"`
	// Why explains the mechanism behind the bias.
	Why string `json:"why"`
	// Counter describes a strategy for resisting the bias.
	Counter string `json:"counter"`
	Source  Source `json:"source"`

	// CreatedAt and UpdatedAt are Unix milliseconds, set for user biases.
	CreatedAt int64 `json:"createdAt,omitempty"`
	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

// Validate checks the structural invariants of a bias.
func (b Bias) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidBias)
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("%w: %s: title is required", ErrInvalidBias, b.ID)
	}
	if !b.Category.Valid() {
		return fmt.Errorf("%w: %s: unknown category %q", ErrInvalidBias, b.ID, b.Category)
	}
	return nil
}

// IsUser reports whether the bias was authored by the learner.
func (b Bias) IsUser() bool {
	return b.Source == SourceUser
}
