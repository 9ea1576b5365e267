package validation

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDetails(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Nil(t, ToDetails(nil))
	})

	t.Run("json syntax error", func(t *testing.T) {
		var payload map[string]any
		err := json.Unmarshal([]byte("{nope"), &payload)
		require.Error(t, err)
		assert.Equal(t, map[string]string{"payload": "invalid json"}, ToDetails(err))
	})

	t.Run("json type error", func(t *testing.T) {
		var dst struct {
			Name string `json:"name"`
		}
		err := json.Unmarshal([]byte(`{"name": 42}`), &dst)
		require.Error(t, err)
		assert.Equal(t, map[string]string{"payload": "invalid json"}, ToDetails(err))
	})

	t.Run("validation errors use json field names", func(t *testing.T) {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string { return fld.Tag.Get("json") })

		type req struct {
			Email string `json:"email" validate:"required,email"`
			Name  string `json:"name" validate:"max=3"`
		}
		err := v.Struct(req{Email: "", Name: "toolong"})
		require.Error(t, err)

		details := ToDetails(err)
		assert.Equal(t, "is required", details["email"])
		assert.Equal(t, "must be at most 3 characters long", details["name"])
	})

	t.Run("unknown error", func(t *testing.T) {
		assert.Equal(t, map[string]string{"payload": "invalid payload"}, ToDetails(errors.New("boom")))
	})
}
