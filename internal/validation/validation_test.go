package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email string `json:"user_email" validate:"required,email"`
	Date  string `json:"selected_date" validate:"required,datetime=2006-01-02"`
}

func TestFieldsUseJSONNames(t *testing.T) {
	err := New().Struct(sample{Email: "not-an-email", Date: "2026-13-40"})
	require.Error(t, err)

	fields := Fields(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "user_email", fields[0].Field)
	assert.Equal(t, "invalid email format", fields[0].Message)
	assert.Equal(t, "selected_date", fields[1].Field)
	assert.Equal(t, "user_email: invalid email format; selected_date: invalid date or time format", Summary(err))
}

func TestSummaryOfPlainError(t *testing.T) {
	assert.Equal(t, "boom", Summary(errors.New("boom")))
	assert.Equal(t, "", Summary(nil))
	assert.Nil(t, Fields(errors.New("boom")))
}

func TestValidStructPasses(t *testing.T) {
	assert.NoError(t, New().Struct(sample{Email: "a@b.co", Date: "2026-11-02"}))
}
