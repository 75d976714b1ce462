package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password CheckStrength accepts.
const MinPasswordLength = 8

// commonPasswords is a short list of passwords seen at the top of every
// breach corpus. Compared case-insensitively.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {},
	"12345678": {}, "123456789": {}, "1234567890": {}, "qwerty123": {},
	"qwertyuiop": {}, "iloveyou": {}, "sunshine": {}, "princess": {},
	"football": {}, "baseball": {}, "welcome1": {}, "letmein1": {},
	"abc12345": {}, "11111111": {}, "00000000": {}, "admin123": {},
	"trustno1": {}, "superman": {}, "starwars": {}, "whatever": {},
	"dragon12": {}, "monkey12": {}, "master12": {}, "michael1": {},
	"changeme": {}, "qazwsxedc": {}, "1q2w3e4r": {}, "zaq12wsx": {},
}

// Password policy violations returned by CheckStrength.
var (
	ErrPasswordTooShort = fmt.Errorf("auth: password is shorter than %d characters", MinPasswordLength)
	ErrPasswordNumeric  = errors.New("auth: password is entirely numeric")
	ErrPasswordCommon   = errors.New("auth: password is too common")
	ErrPasswordSimilar  = errors.New("auth: password is too similar to personal information")
)

// CheckStrength returns the sentinel for the first rule password breaks,
// or nil. related holds user attributes (email, names) the password must
// not resemble.
func CheckStrength(password string, related ...string) error {
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if isNumeric(password) {
		return ErrPasswordNumeric
	}

	lower := strings.ToLower(password)
	if _, ok := commonPasswords[lower]; ok {
		return ErrPasswordCommon
	}

	for _, part := range similarityParts(related) {
		if tooSimilar(lower, part) {
			return ErrPasswordSimilar
		}
	}
	return nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// tooSimilar reports whether part makes up at least half of password, or
// password is a fragment of part.
func tooSimilar(password, part string) bool {
	if strings.Contains(part, password) {
		return true
	}
	return strings.Contains(password, part) && 2*len(part) >= len(password)
}

// similarityParts splits attributes on non-alphanumerics and keeps parts of
// 3+ runes. Callers pass the email local part, not the whole address.
func similarityParts(attrs []string) []string {
	var parts []string
	for _, a := range attrs {
		fields := strings.FieldsFunc(strings.ToLower(a), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, f := range fields {
			if utf8.RuneCountInString(f) >= 3 {
				parts = append(parts, f)
			}
		}
	}
	return parts
}
