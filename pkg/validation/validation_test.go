package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Email    string `validate:"required,email"`
	Phone    string `validate:"required,valid_phone"`
	Name     string `validate:"required,not_blank,valid_name,no_emoji"`
	Password string `validate:"required,min=6"`
}

func TestCustomValidators(t *testing.T) {
	v := New()

	t.Run("valid form passes", func(t *testing.T) {
		err := v.Struct(signupForm{Email: "ahmed@farmer.com", Phone: "+251 911-234567", Name: "Ahmed Hassan", Password: "secret1"})
		assert.NoError(t, err)
	})

	t.Run("phone with letters is rejected", func(t *testing.T) {
		err := v.Struct(signupForm{Email: "a@b.co", Phone: "call-me", Name: "Ahmed", Password: "secret1"})
		require.Error(t, err)
		assert.Contains(t, FormatValidationErrors(err), "Phone number: invalid phone number (7-15 digits, optional +)")
	})

	t.Run("blank name is rejected", func(t *testing.T) {
		err := v.Struct(signupForm{Email: "a@b.co", Phone: "0911234567", Name: "   ", Password: "secret1"})
		require.Error(t, err)
		assert.Contains(t, FormatValidationErrors(err), "Full name: is required")
	})

	t.Run("emoji in name is rejected", func(t *testing.T) {
		err := v.Struct(signupForm{Email: "a@b.co", Phone: "0911234567", Name: "Ahmed 🌱", Password: "secret1"})
		assert.Error(t, err)
	})

	t.Run("short password reports length", func(t *testing.T) {
		err := v.Struct(signupForm{Email: "a@b.co", Phone: "0911234567", Name: "Ahmed", Password: "123"})
		require.Error(t, err)
		assert.Contains(t, FormatValidationErrors(err), "Password: must be at least 6 characters")
	})
}

func TestFormatCamelCase(t *testing.T) {
	assert.Equal(t, "Harvest Date", getFieldLabel("HarvestDate"))
	assert.Equal(t, "Crop type", getFieldLabel("CropType"))
}
