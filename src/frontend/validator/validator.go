// Package validator checks the forms the storefront accepts before anything leaves the
// frontend.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/abahm00/shopwise-clone/src/frontend/cartstore"
)

var validate *validator.Validate

var (
	loginEmailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	signupEmailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

const passwordSpecials = "!@#$%^&*"

// Messages shared by several forms.
const (
	MsgFillAllFields    = "Please fill in all fields."
	MsgPasswordsDiffer  = "Passwords do not match."
	MsgPasswordStrength = "Password must contain at least one uppercase letter, one number, one special character, and be between 8 to 12 characters."
)

type Payload interface {
	Validate() error
	// Message is the text shown to the shopper for a Validate error.
	Message(err error) string
}

type AddToCartPayload struct {
	ProductID string `validate:"required"`
	Category  string
	Quantity  int `validate:"gte=1"`
	Size      string
	Color     string
}

type SetQuantityPayload struct {
	ProductID string `validate:"required"`
	Quantity  int    `validate:"gte=1"`
}

type RemoveLinePayload struct {
	ProductID string `validate:"required"`
}

type LoginPayload struct {
	Email    string `validate:"required,loginemail"`
	Password string `validate:"required"`
}

type SignupPayload struct {
	Name     string `validate:"required,min=3,max=12,oneword"`
	Email    string `validate:"required,signupemail"`
	Password string `validate:"required,strongpassword"`
	Confirm  string `validate:"required,eqfield=Password"`
}

type ResetPasswordPayload struct {
	Email    string `validate:"required"`
	Password string `validate:"required,strongpassword"`
	Confirm  string `validate:"required,eqfield=Password"`
}

func (p *AddToCartPayload) Validate() error     { return validate.Struct(p) }
func (p *SetQuantityPayload) Validate() error   { return validate.Struct(p) }
func (p *RemoveLinePayload) Validate() error    { return validate.Struct(p) }
func (p *LoginPayload) Validate() error         { return validate.Struct(p) }
func (p *SignupPayload) Validate() error        { return validate.Struct(p) }
func (p *ResetPasswordPayload) Validate() error { return validate.Struct(p) }

func (p *AddToCartPayload) Message(err error) string {
	return cartstore.MsgSelectOptions
}

func (p *SetQuantityPayload) Message(err error) string {
	return cartstore.MsgUpdateFailed
}

func (p *RemoveLinePayload) Message(err error) string {
	return cartstore.MsgRemoveFailed
}

func (p *LoginPayload) Message(err error) string {
	return firstMessage(err, []rule{
		{"*", "required", MsgFillAllFields},
		{"Email", "loginemail", "Please enter a valid email address."},
	})
}

func (p *SignupPayload) Message(err error) string {
	return firstMessage(err, []rule{
		{"*", "required", MsgFillAllFields},
		{"Name", "min", "Name must be between 3 and 12 characters."},
		{"Name", "max", "Name must be between 3 and 12 characters."},
		{"Name", "oneword", "Name should only contain one word, no spaces."},
		{"Email", "signupemail", "Invalid email format."},
		{"Password", "strongpassword", MsgPasswordStrength},
		{"Confirm", "eqfield", MsgPasswordsDiffer},
	})
}

func (p *ResetPasswordPayload) Message(err error) string {
	return firstMessage(err, []rule{
		{"Email", "required", "Please enter your email address."},
		{"Password", "required", "Please fill in both password fields."},
		{"Confirm", "required", "Please fill in both password fields."},
		{"Confirm", "eqfield", MsgPasswordsDiffer},
		{"Password", "strongpassword", MsgPasswordStrength},
	})
}

type rule struct {
	field string
	tag   string
	msg   string
}

// firstMessage returns the message of the first rule, in rule order, that one of the
// field errors in err matches. Field "*" matches any field.
func firstMessage(err error, rules []rule) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "An error occurred. Please try again."
	}
	for _, r := range rules {
		for _, fe := range verrs {
			if (r.field == "*" || r.field == fe.Field()) && r.tag == fe.Tag() {
				return r.msg
			}
		}
	}
	return verrs[0].Error()
}

func init() {
	validate = validator.New()
	validate.RegisterValidation("loginemail", func(fl validator.FieldLevel) bool {
		return loginEmailRe.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("signupemail", func(fl validator.FieldLevel) bool {
		return signupEmailRe.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("oneword", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), unicode.IsSpace)
	})
	validate.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	validate.RegisterStructValidation(addToCartOptions, AddToCartPayload{})
}

// addToCartOptions reports the variant choices the product's category requires.
func addToCartOptions(sl validator.StructLevel) {
	p := sl.Current().Interface().(AddToCartPayload)
	opts := cartstore.OptionsFor(p.Category)
	if opts.Size && p.Size == "" {
		sl.ReportError(p.Size, "Size", "Size", "option", "")
	}
	if opts.Color && p.Color == "" {
		sl.ReportError(p.Color, "Color", "Color", "option", "")
	}
}

// StrongPassword is 8 to 12 characters from letters, digits and !@#$%^&*, with at least
// one uppercase letter, one digit and one of the special characters.
func StrongPassword(pw string) bool {
	if len(pw) < 8 || len(pw) > 12 {
		return false
	}
	var upper, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		case r >= 'a' && r <= 'z':
		default:
			return false
		}
	}
	return upper && digit && special
}

func ValidationErrorResponse(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return errors.New("invalid validation error format")
	}
	var msg string
	for _, err := range validationErrs {
		msg += fmt.Sprintf("Field '%s' is invalid: %s\n", err.Field(), err.Tag())
	}
	return errors.New(msg)
}
