// Package validation sanitizes and validates learner input before it
// reaches the catalog or the search ranker.
package validation

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jonwraymond/biasdaily/content"
)

// Length limits, in runes.
const (
	MaxTextLen    = 1000
	MaxQueryLen   = 200
	MinTitleLen   = 3
	MaxTitleLen   = 100
	MinSummaryLen = 10
	MaxSummaryLen = 500
)

// UserBiasPrefix prefixes the IDs of learner-authored biases.
const UserBiasPrefix = "user-"

// ErrInvalidInput is wrapped by every validation failure.
var ErrInvalidInput = errors.New("invalid input")

var (
	stripTags     = bluemonday.StrictPolicy()
	scriptScheme  = regexp.MustCompile(`(?i)javascript:`)
	inlineHandler = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// SanitizeText removes markup and script-like content, trims whitespace
// and caps the result at maxLen runes. maxLen <= 0 means MaxTextLen.
func SanitizeText(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	if maxLen <= 0 {
		maxLen = MaxTextLen
	}

	s := strings.ToValidUTF8(text, "")
	s = html.UnescapeString(stripTags.Sanitize(s))
	s = scriptScheme.ReplaceAllString(s, "")
	s = inlineHandler.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	return truncate(s, maxLen)
}

// SearchQuery sanitizes a raw search box value.
func SearchQuery(q string) string {
	return SanitizeText(q, MaxQueryLen)
}

// ValidateTitle checks a user-supplied bias title.
func ValidateTitle(title string) error {
	return validateRequired("title", title, MinTitleLen, MaxTitleLen)
}

// ValidateSummary checks a user-supplied bias summary.
func ValidateSummary(summary string) error {
	return validateRequired("summary", summary, MinSummaryLen, MaxSummaryLen)
}

// ValidateOptionalText accepts empty text and otherwise enforces maxLen.
func ValidateOptionalText(field, text string, maxLen int) error {
	if text == "" {
		return nil
	}
	if maxLen <= 0 {
		maxLen = MaxTextLen
	}
	if n := utf8.RuneCountInString(SanitizeText(text, len(text)+1)); n > maxLen {
		return fmt.Errorf("%w: %s must be less than %d characters", ErrInvalidInput, field, maxLen)
	}
	return nil
}

func validateRequired(field, text string, minLen, maxLen int) error {
	sanitized := SanitizeText(text, len(text)+1)
	n := utf8.RuneCountInString(sanitized)
	switch {
	case n == 0:
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	case n < minLen:
		return fmt.Errorf("%w: %s must be at least %d characters", ErrInvalidInput, field, minLen)
	case n > maxLen:
		return fmt.Errorf("%w: %s must be less than %d characters", ErrInvalidInput, field, maxLen)
	}
	return nil
}

// UserBiasInput is the raw form data for a learner-authored bias.
type UserBiasInput struct {
	Title    string
	Category string
	Summary  string
	Why      string
	Counter  string
}

// NewUserBias validates input and builds a sanitized user bias with a
// fresh ID. now stamps CreatedAt and UpdatedAt.
func NewUserBias(in UserBiasInput, now time.Time) (content.Bias, error) {
	b, err := sanitizeUserBias(in)
	if err != nil {
		return content.Bias{}, err
	}
	ms := now.UnixMilli()
	b.ID = UserBiasPrefix + uuid.NewString()
	b.CreatedAt = ms
	b.UpdatedAt = ms
	return b, nil
}

// UpdateUserBias validates input and applies it to an existing user bias,
// keeping its ID and CreatedAt.
func UpdateUserBias(existing content.Bias, in UserBiasInput, now time.Time) (content.Bias, error) {
	if !existing.IsUser() {
		return content.Bias{}, fmt.Errorf("%w: %s", content.ErrReadOnly, existing.ID)
	}
	b, err := sanitizeUserBias(in)
	if err != nil {
		return content.Bias{}, err
	}
	b.ID = existing.ID
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = now.UnixMilli()
	return b, nil
}

func sanitizeUserBias(in UserBiasInput) (content.Bias, error) {
	if err := ValidateTitle(in.Title); err != nil {
		return content.Bias{}, err
	}
	if err := ValidateSummary(in.Summary); err != nil {
		return content.Bias{}, err
	}
	if err := ValidateOptionalText("why", in.Why, MaxTextLen); err != nil {
		return content.Bias{}, err
	}
	if err := ValidateOptionalText("counter", in.Counter, MaxTextLen); err != nil {
		return content.Bias{}, err
	}
	cat, err := content.ParseCategory(in.Category)
	if err != nil {
		return content.Bias{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return content.Bias{
		Title:    SanitizeText(in.Title, MaxTitleLen),
		Category: cat,
		Summary:  SanitizeText(in.Summary, MaxSummaryLen),
		Why:      SanitizeText(in.Why, MaxTextLen),
		Counter:  SanitizeText(in.Counter, MaxTextLen),
		Source:   content.SourceUser,
	}, nil
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxLen]))
}
