package auth

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// RegisterRequest carries the credentials of a new account.
// Usernames are identities on the realtime channel, so they cannot hold whitespace
// nor take a broadcast receiver name.
type RegisterRequest struct {
	Username string `validate:"required,max=64,identity"`
	Password string `validate:"required,min=8,max=72"`
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrValidation, err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("identity", func(fl validator.FieldLevel) bool {
		identity := fl.Field().String()
		return strings.IndexFunc(identity, unicode.IsSpace) < 0 && !domain.IsBroadcastReceiver(identity)
	})
	return v
}
