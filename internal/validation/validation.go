// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"inkwell/internal/models"
)

// Field limits shared by handlers and services.
const (
	UsernameMin    = 3
	UsernameMax    = 32
	PasswordMin    = 8
	PasswordMax    = 72 // bcrypt ignores bytes past 72
	ProfileNameMax = 64
	BioMax         = 500
	TitleMax       = 200
	ContentMax     = 50000
	CommentMax     = 5000
	MessageMax     = 4000
	AltMax         = 300
	TagMax         = 40
	TagsPerPost    = 10
	ParticipantMax = 50
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	tagRegex      = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if len(username) < UsernameMin {
		return fmt.Errorf("username must be at least %d characters long", UsernameMin)
	}
	if len(username) > UsernameMax {
		return fmt.Errorf("username must not exceed %d characters", UsernameMax)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, and underscores")
	}
	return nil
}

// ValidatePassword checks length and requires at least one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < PasswordMin {
		return fmt.Errorf("password must be at least %d characters long", PasswordMin)
	}
	if len(password) > PasswordMax {
		return fmt.Errorf("password must not exceed %d bytes", PasswordMax)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		return fmt.Errorf("password must contain at least one letter")
	}
	if !hasDigit {
		return fmt.Errorf("password must contain at least one digit")
	}
	return nil
}

// NormalizeTags lower-cases, trims and deduplicates tag names, preserving first-seen order.
func NormalizeTags(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		name := strings.ToLower(strings.TrimSpace(t))
		if name == "" {
			continue
		}
		if len(name) > TagMax {
			return nil, fmt.Errorf("tag %q must not exceed %d characters", name, TagMax)
		}
		if !tagRegex.MatchString(name) {
			return nil, fmt.Errorf("tag %q can only contain letters, numbers, and hyphens", name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) > TagsPerPost {
		return nil, fmt.Errorf("a post can have at most %d tags", TagsPerPost)
	}
	return out, nil
}

// Issues accumulates field-level problems for a single ValidationError.
type Issues []models.FieldIssue

// Add records a problem with field.
func (is *Issues) Add(field, message string) {
	*is = append(*is, models.FieldIssue{Field: field, Message: message})
}

// Check records err against field when it is non-nil.
func (is *Issues) Check(field string, err error) {
	if err != nil {
		is.Add(field, err.Error())
	}
}

// Required records a problem when value is blank.
func (is *Issues) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		is.Add(field, "is required")
	}
}

// MaxLen records a problem when value has more than max characters.
func (is *Issues) MaxLen(field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		is.Add(field, fmt.Sprintf("must not exceed %d characters", max))
	}
}

// Err returns a ValidationError carrying the issues, or nil when there are none.
func (is Issues) Err(message string) error {
	if len(is) == 0 {
		return nil
	}
	return models.NewValidationError(message, is...)
}
