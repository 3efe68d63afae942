package validation

import (
	"strings"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "password1", false},
		{"Exactly Min Length", "abcdefg1", false},
		{"Exactly Max Length", strings.Repeat("a", 71) + "1", false},
		{"Too Short", "abc12", true},
		{"Too Long", strings.Repeat("a", 72) + "1", true},
		{"No Digit", "passwordonly", true},
		{"No Letter", "1234567890", true},
		{"Unicode Letter", "Ångström99", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "test_user123", false},
		{"Mixed Case", "Alice", false},
		{"Leading Underscore", "_alice", false},
		{"Too Short", "tu", true},
		{"Too Long", strings.Repeat("a", 33), true},
		{"Illegal Chars", "user@123", true},
		{"Hyphen", "user-name", true},
		{"Space", "user name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	t.Parallel()

	got, err := NormalizeTags([]string{" Go ", "go", "", "web-dev", "GO"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "web-dev"}, got)

	_, err = NormalizeTags([]string{"bad tag"})
	assert.Error(t, err)

	_, err = NormalizeTags([]string{strings.Repeat("x", TagMax+1)})
	assert.Error(t, err)

	many := make([]string, TagsPerPost+1)
	for i := range many {
		many[i] = strings.Repeat("t", i+1)
	}
	_, err = NormalizeTags(many)
	assert.Error(t, err)
}

func TestIssues(t *testing.T) {
	t.Parallel()

	var is Issues
	assert.NoError(t, is.Err("Invalid input"))

	is.Required("title", "   ")
	is.MaxLen("content", "héllo", 4)
	is.MaxLen("content", "héllo", 5)
	is.Check("password", nil)
	is.Check("username", ValidateUsername("x"))

	err := is.Err("Invalid input")
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Len(t, appErr.Issues, 3)
	assert.Equal(t, "title", appErr.Issues[0].Field)
	assert.Equal(t, "content", appErr.Issues[1].Field)
	assert.Equal(t, "username", appErr.Issues[2].Field)
}
