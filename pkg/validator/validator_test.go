package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Note  string `json:"note"`
}

func TestValidate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&signup{Name: "Asha", Email: "asha@example.com"}))

	err := v.Validate(&signup{Email: "not-an-email"})
	require.Error(t, err)

	var verrs Errors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.Has("name", "required"))
	assert.True(t, verrs.Has("email", "email"))
	assert.Equal(t, "name is required; email must be a valid email", err.Error())
}
