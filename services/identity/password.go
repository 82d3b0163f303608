package identitysvc

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/tahfeezapp/tahfeez/core/auth"
)

const (
	pwdMinLen = 8
	pwdMaxSim = .7
)

// ValidatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - no account attrs similarity
func ValidatePassword(pwd string, attrs ...string) error {
	pwdLen := len(pwd)
	if pwdLen < pwdMinLen {
		return errors.Wrap(auth.ErrWeakPassword, "too short")
	}

	var digitCount int
	for _, char := range []rune(pwd) {
		if unicode.IsSpace(char) {
			return errors.Wrap(auth.ErrWeakPassword, "contains whitespace")
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	if digitCount == pwdLen {
		return errors.Wrap(auth.ErrWeakPassword, "entirely numeric")
	}

	getRatio := func(pass, attr string) float64 {
		if attr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(attr, "")).QuickRatio()
	}
	for _, attr := range attrs {
		if getRatio(pwd, attr) >= pwdMaxSim {
			return errors.Wrap(auth.ErrWeakPassword, "too similar to account attributes")
		}
	}
	return nil
}
