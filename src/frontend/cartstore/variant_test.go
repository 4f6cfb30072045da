package cartstore

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/abahm00/shopwise-clone/src/frontend/model"
)

func TestValidateSelection(t *testing.T) {
	tests := []struct {
		name     string
		category string
		quantity int
		size     string
		color    string
		wantErr  bool
	}{
		{"electronics needs nothing", "electronics", 1, "", "", false},
		{"electronics ignores extras", "electronics", 2, "M", "red", false},
		{"jewelery needs a size", "jewelery", 1, "", "", true},
		{"jewelery with size only", "jewelery", 1, "21", "", false},
		{"clothing needs both", "women's clothing", 1, "", "", true},
		{"clothing without color", "women's clothing", 1, "M", "", true},
		{"clothing without size", "men's clothing", 1, "", "blue", true},
		{"clothing with both", "men's clothing", 3, "L", "black", false},
		{"zero quantity", "electronics", 0, "", "", true},
		{"negative quantity", "men's clothing", -2, "L", "black", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelection(model.Product{ID: "1", Category: tt.category}, tt.quantity, tt.size, tt.color)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptionsFor(t *testing.T) {
	assert.Equal(t, Options{}, OptionsFor("electronics"))
	assert.Equal(t, Options{Size: true}, OptionsFor("jewelery"))
	assert.Equal(t, Options{Size: true, Color: true}, OptionsFor("men's clothing"))
}
