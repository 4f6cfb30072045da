package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddToCartPayload(t *testing.T) {
	tests := []struct {
		name    string
		p       AddToCartPayload
		wantErr bool
	}{
		{"electronics", AddToCartPayload{ProductID: "9", Category: "electronics", Quantity: 1}, false},
		{"jewelery with size", AddToCartPayload{ProductID: "5", Category: "jewelery", Quantity: 1, Size: "20"}, false},
		{"jewelery without size", AddToCartPayload{ProductID: "5", Category: "jewelery", Quantity: 1}, true},
		{"clothing without color", AddToCartPayload{ProductID: "1", Category: "men's clothing", Quantity: 1, Size: "M"}, true},
		{"clothing complete", AddToCartPayload{ProductID: "1", Category: "men's clothing", Quantity: 2, Size: "M", Color: "red"}, false},
		{"zero quantity", AddToCartPayload{ProductID: "9", Category: "electronics"}, true},
		{"missing product", AddToCartPayload{Category: "electronics", Quantity: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, "Please select the required options.", tt.p.Message(err))
		})
	}
}

func TestLoginPayloadMessages(t *testing.T) {
	tests := []struct {
		name string
		p    LoginPayload
		want string
	}{
		{"empty", LoginPayload{}, "Please fill in all fields."},
		{"missing password wins over bad email", LoginPayload{Email: "nope"}, "Please fill in all fields."},
		{"bad email", LoginPayload{Email: "a@b", Password: "x"}, "Please enter a valid email address."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.want, tt.p.Message(err))
		})
	}

	ok := LoginPayload{Email: "a@b.co", Password: "x"}
	assert.NoError(t, ok.Validate())
}

func TestSignupPayloadMessages(t *testing.T) {
	valid := SignupPayload{Name: "ana", Email: "ana@shop.io", Password: "Secret1!", Confirm: "Secret1!"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(p *SignupPayload)
		want   string
	}{
		{"missing confirm", func(p *SignupPayload) { p.Confirm = "" }, "Please fill in all fields."},
		{"short name", func(p *SignupPayload) { p.Name = "al" }, "Name must be between 3 and 12 characters."},
		{"long name", func(p *SignupPayload) { p.Name = "abcdefghijklm" }, "Name must be between 3 and 12 characters."},
		{"two words", func(p *SignupPayload) { p.Name = "ana b" }, "Name should only contain one word, no spaces."},
		{"bad email", func(p *SignupPayload) { p.Email = "ana@shop.i" }, "Invalid email format."},
		{"weak password", func(p *SignupPayload) { p.Password, p.Confirm = "secret11", "secret11" }, MsgPasswordStrength},
		{"mismatch", func(p *SignupPayload) { p.Confirm = "Secret2!" }, "Passwords do not match."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.modify(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.want, p.Message(err))
		})
	}
}

func TestResetPasswordPayloadMessages(t *testing.T) {
	tests := []struct {
		name string
		p    ResetPasswordPayload
		want string
	}{
		{"no email", ResetPasswordPayload{Password: "Secret1!", Confirm: "Secret1!"}, "Please enter your email address."},
		{"one password", ResetPasswordPayload{Email: "a@b.co", Password: "Secret1!"}, "Please fill in both password fields."},
		{"mismatch beats strength", ResetPasswordPayload{Email: "a@b.co", Password: "weak", Confirm: "weaker"}, "Passwords do not match."},
		{"weak", ResetPasswordPayload{Email: "a@b.co", Password: "weakpass", Confirm: "weakpass"}, MsgPasswordStrength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.want, tt.p.Message(err))
		})
	}
}

func TestStrongPassword(t *testing.T) {
	for pw, want := range map[string]bool{
		"Secret1!":      true,
		"ABCdef12#$":    true,
		"Secret1":       false,
		"secret1!":      false,
		"Secretone!":    false,
		"Secret11":      false,
		"Secret1!Long1": false,
		"Secret 1!":     false,
		"Sécret1!":      false,
	} {
		assert.Equal(t, want, StrongPassword(pw), pw)
	}
}

func TestValidationErrorResponse(t *testing.T) {
	p := SetQuantityPayload{ProductID: "1"}
	err := ValidationErrorResponse(p.Validate())
	assert.EqualError(t, err, "Field 'Quantity' is invalid: gte\n")
}
