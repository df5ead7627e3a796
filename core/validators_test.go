package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestInitValidators(t *testing.T) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)

	type payload struct {
		Code    string `json:"code" validate:"omitempty,alphanum_"`
		Label   string `json:"label" validate:"notblank"`
		Born    string `json:"born" validate:"isodate"`
		Missing string `json:"missing,omitempty" validate:"required"`
	}

	tests := []struct {
		name string
		data payload
		want map[string]string
	}{
		{
			name: "valid",
			data: payload{Code: "class_1A", Label: "x", Born: "2010-01-31", Missing: "ok"},
		},
		{
			name: "empty date is accepted",
			data: payload{Label: "x", Missing: "ok"},
		},
		{
			name: "invalid",
			data: payload{Code: "1A-B", Label: "   ", Born: "2010"},
			want: map[string]string{
				"code":    alphaNumUnderText,
				"label":   notBlankText,
				"born":    isoDateText,
				"missing": requiredText,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.data)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			got, ok := FieldErrors(err, translator)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
