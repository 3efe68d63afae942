package repository

import (
	"errors"
	"fmt"
	"testing"

	"inkwell/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestConstraintErrorDetection(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		unique     bool
		foreignKey bool
	}{
		{"pg unique", &pgconn.PgError{Code: "23505"}, true, false},
		{"pg foreign key", &pgconn.PgError{Code: "23503"}, false, true},
		{"wrapped pg unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true, false},
		{"sqlite unique", errors.New("UNIQUE constraint failed: users.username"), true, false},
		{"sqlite foreign key", errors.New("FOREIGN KEY constraint failed"), false, true},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true, false},
		{"other", errors.New("connection reset"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, isUniqueConstraintError(tt.err))
			assert.Equal(t, tt.foreignKey, isForeignKeyError(tt.err))
		})
	}
}

func TestWriteError(t *testing.T) {
	assert.True(t, models.IsCode(writeError(&pgconn.PgError{Code: "23505"}, "username"), models.CodeUniqueViolation))
	assert.True(t, models.IsCode(writeError(&pgconn.PgError{Code: "23503"}, "image_id"), models.CodeInvalidReference))
	assert.True(t, models.IsCode(writeError(errors.New("boom"), "x"), models.CodeInternal))
}

func TestReadError(t *testing.T) {
	err := readError(gorm.ErrRecordNotFound, "Post", 7)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.Contains(t, err.Error(), "not found")

	assert.True(t, models.IsCode(readError(errors.New("boom"), "Post", 7), models.CodeInternal))
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: defaultPageSize}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: maxPageSize, Offset: 5}, Page{Limit: 1000, Offset: 5}.Normalize())
	assert.Equal(t, Page{Limit: 10}, Page{Limit: 10, Offset: -3}.Normalize())
}
