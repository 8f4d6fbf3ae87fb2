// Package email derives presentation details from bare addresses.
// Invitations are sent to addresses the inviter typed in, so a greeting
// name has to be guessed from the local part rather than looked up.
package email

import (
	"strings"
	"unicode"
)

// GreetingName guesses a first name from the address local part, splitting
// on common separators. "jane.doe+rent@example.com" yields "Jane". Falls
// back to "there" when nothing usable remains, which reads fine in a
// "Hi there" salutation.
func GreetingName(email string) string {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "there"
	}

	return capitalize(parts[0])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
