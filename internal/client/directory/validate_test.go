package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/chatline/internal/common"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"ok", "alice1", nil},
		{"unicode ok", "žanis", nil},
		{"too short", "ab", common.ErrUsernameTooShort},
		{"empty", "", common.ErrUsernameTooShort},
		{"digits", "123", common.ErrUsernameNumeric},
		{"tag", "<b>bob</b>", common.ErrUsernameMarkup},
		{"script", "eve<script>", common.ErrUsernameMarkup},
		{"ampersand", "tom&jerry", common.ErrUsernameMarkup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.in)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@example.com"))
	assert.ErrorIs(t, ValidateEmail("not-an-email"), common.ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail("Alice <a@example.com>"), common.ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail(""), common.ErrInvalidEmail)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("secret"))
	assert.ErrorIs(t, ValidatePassword("12345"), common.ErrWeakPassword)
}
