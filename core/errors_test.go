package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsValidation(t *testing.T) {
	type doc struct {
		Name string `validate:"required"`
	}
	structErr := validator.New().Struct(doc{})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil},
		{name: "field error", err: NewFieldError("name", "required"), want: true},
		{name: "wrapped field error", err: errors.Wrap(NewFieldError("name", "required"), "creating"), want: true},
		{name: "struct check", err: structErr, want: true},
		{name: "wrapped struct check", err: errors.Wrap(structErr, "updating"), want: true},
		{name: "not found", err: NewNotFoundError("province", "1")},
		{name: "store", err: NewStoreError("insert", errors.New("boom"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidation(tt.err))
		})
	}
}
