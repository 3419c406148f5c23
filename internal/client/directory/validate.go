package directory

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/dmitrijs2005/chatline/internal/common"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

var strict = bluemonday.StrictPolicy()

// ValidateUsername checks a username locally. A name the strict policy
// would change (tags, entities, ampersands) is treated as markup.
func ValidateUsername(name string) error {
	if utf8.RuneCountInString(name) < MinUsernameLength {
		return common.ErrUsernameTooShort
	}
	if strings.IndexFunc(name, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return common.ErrUsernameNumeric
	}
	if strict.Sanitize(name) != name {
		return common.ErrUsernameMarkup
	}
	return nil
}

// ValidateEmail accepts a bare address, no display name.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return common.ErrInvalidEmail
	}
	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return common.ErrWeakPassword
	}
	return nil
}
