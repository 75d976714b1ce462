package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		related  []string
		wantErr  error
	}{
		{name: "strong password", password: "tangerine-orbit-42", related: []string{"ada", "Ada", "Lovelace"}},
		{name: "too short", password: "a1b2c3", wantErr: ErrPasswordTooShort},
		{name: "entirely numeric", password: "8675309123", wantErr: ErrPasswordNumeric},
		{name: "common password any case", password: "PassWord123", wantErr: ErrPasswordCommon},
		{name: "mostly the first name", password: "lovelace1", related: []string{"ada.lovelace", "Ada", "Lovelace"}, wantErr: ErrPasswordSimilar},
		{name: "short name inside long password is fine", password: "canadian-maple-syrup", related: []string{"ada"}},
		{name: "over bcrypt limit", password: strings.Repeat("x", 73), wantErr: ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStrength(tt.password, tt.related...)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckStrength_ErrorStrings(t *testing.T) {
	for _, err := range []error{ErrPasswordTooShort, ErrPasswordNumeric, ErrPasswordCommon, ErrPasswordSimilar, ErrPasswordTooLong} {
		msg := err.Error()
		assert.True(t, strings.HasPrefix(msg, "auth: "), msg)
		assert.False(t, strings.HasSuffix(msg, "."), msg)
		assert.False(t, errors.Is(err, ErrPasswordMismatch))
	}
}
