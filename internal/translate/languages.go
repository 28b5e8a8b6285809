// Package translate re-fetches posts through a language-aware mirror and
// manages the set of supported target languages.
package translate

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Off disables translation for a user.
const Off = "off"

// SupportedCodes are the target languages users may choose.
var SupportedCodes = []string{"ru", "en", "uk", "es", "fr", "de", "it", "pt", "ja", "ko", "zh", "ar", "tr", "pl", "nl"}

// Language describes one supported target language.
type Language struct {
	Code string
	// Name is the language's name in itself, e.g. "Deutsch".
	Name string
	// English is the English name, e.g. "German".
	English string
}

// Languages lists the supported languages sorted by native name.
func Languages() []Language {
	out := make([]Language, 0, len(SupportedCodes))
	for _, code := range SupportedCodes {
		out = append(out, describe(code))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func describe(code string) Language {
	tag := language.Make(code)
	native := display.Self.Name(tag)
	if native == "" {
		native = code
	}
	return Language{
		Code:    code,
		Name:    cases.Title(tag).String(native),
		English: display.English.Languages().Name(tag),
	}
}

// Supported reports whether code is a supported target language.
func Supported(code string) bool {
	for _, c := range SupportedCodes {
		if c == code {
			return true
		}
	}
	return false
}

// ParseLanguage maps user input to a supported code. It accepts "off", a
// code or BCP 47 tag ("pt-BR"), a native or English name, or a prefix of a
// name of at least two letters.
func ParseLanguage(input string) (string, bool) {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return "", false
	}
	if in == Off {
		return Off, true
	}
	if tag, err := language.Parse(in); err == nil {
		base, _ := tag.Base()
		if Supported(base.String()) {
			return base.String(), true
		}
	}
	langs := Languages()
	for _, l := range langs {
		if in == strings.ToLower(l.Name) || in == strings.ToLower(l.English) {
			return l.Code, true
		}
	}
	if len([]rune(in)) < 2 {
		return "", false
	}
	for _, l := range langs {
		if strings.HasPrefix(strings.ToLower(l.Name), in) || strings.HasPrefix(strings.ToLower(l.English), in) {
			return l.Code, true
		}
	}
	return "", false
}

// DisplayName returns the English name of a supported code, or the code
// itself.
func DisplayName(code string) string {
	if !Supported(code) {
		return code
	}
	return describe(code).English
}
