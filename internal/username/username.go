// Package username canonicalizes raw player names.
package username

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"osrs-tracker/internal/constants"
	"osrs-tracker/internal/domain"
)

var separators = strings.NewReplacer("_", " ", "-", " ")

type Username struct {
	// Display is the title-cased form stored on the player, e.g. "Iron Mammal".
	Display string
	// Key is the lower-cased form used for lookups and uniqueness.
	Key string
}

// Normalize formats raw and rejects it with domain.ErrInvalidFormat when it is empty
// or longer than constants.MaxUsernameLength.
func Normalize(raw string) (Username, error) {
	u := Format(raw)

	n := utf8.RuneCountInString(u.Key)
	if n < constants.MinUsernameLength || n > constants.MaxUsernameLength {
		return Username{}, domain.InvalidUsername()
	}

	return u, nil
}

// Format canonicalizes raw without validating it. Storage still enforces the length bound.
func Format(raw string) Username {
	words := strings.Fields(separators.Replace(raw))

	for i, w := range words {
		words[i] = titleCase(w)
	}

	display := strings.Join(words, " ")
	return Username{
		Display: display,
		Key:     strings.ToLower(display),
	}
}

func titleCase(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}
