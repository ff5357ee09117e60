package cron

import (
	"fmt"
	"strings"
	"unicode"
)

// fallbackPrefix is used when no word of the message yields a usable prefix.
const fallbackPrefix = "LM"

var accentFold = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a",
	"é", "e", "ê", "e", "è", "e", "ë", "e",
	"í", "i", "î", "i", "ï", "i",
	"ó", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n",
)

// GeneratePrefix derives a 2-3 letter uppercase mnemonic from the message.
// Keyword matches win; otherwise the first significant word's leading
// letters are used, skipping tokens users would misread (state codes,
// common acronyms). Falls back to "LM".
func GeneratePrefix(message string) string {
	words := splitWords(message)

	for _, w := range words {
		if p, ok := keywordPrefixes[w]; ok {
			return p
		}
	}

	for _, w := range words {
		if stopwords[w] || len(w) < 2 {
			continue
		}
		folded := accentFold.Replace(w)
		letters := make([]rune, 0, 3)
		for _, r := range folded {
			if r >= 'a' && r <= 'z' {
				letters = append(letters, unicode.ToUpper(r))
			}
			if len(letters) == 3 {
				break
			}
		}
		if len(letters) < 2 {
			continue
		}
		p := string(letters)
		if confusingPrefixes[p] {
			continue
		}
		return p
	}

	return fallbackPrefix
}

// GenerateID returns prefix plus the smallest unused numeric suffix: two
// digits up to 99, then three. used reports whether an id is taken.
func GenerateID(message string, used func(id string) bool) string {
	prefix := GeneratePrefix(message)

	for n := 1; n <= 99; n++ {
		id := fmt.Sprintf("%s%02d", prefix, n)
		if !used(id) {
			return id
		}
	}
	for n := 100; n <= 999; n++ {
		id := fmt.Sprintf("%s%03d", prefix, n)
		if !used(id) {
			return id
		}
	}
	// Needs a thousand jobs sharing one prefix to get here.
	return fmt.Sprintf("%s%d", prefix, nowMS())
}

func splitWords(message string) []string {
	lower := strings.ToLower(message)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
