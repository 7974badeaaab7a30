// Package fieldcode validates, derives, and deduplicates field codes within a
// scope (an app, or the nested field set of a subtable).
package fieldcode

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// MaxLength is the longest code the platform accepts.
const MaxLength = 128

// DigitPrefix is prepended to derived codes that would start with a digit.
const DigitPrefix = "f_"

// symbols allowed besides alphanumerics and Japanese scripts.
const symbols = "_・＄￥"

// IsLegalRune reports whether r belongs to the field-code character class:
// ASCII and full-width alphanumerics, hiragana, katakana, kanji, and a fixed
// symbol set.
func IsLegalRune(r rune) bool {
	switch {
	case r < utf8.RuneSelf:
		return isASCIIAlnum(r) || r == '_'
	case strings.ContainsRune(symbols, r):
		return true
	case r == 'ー' || r == '々':
		return true
	case unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han):
		return true
	default:
		return isFullwidthAlnum(r)
	}
}

// IsLegal reports whether code is non-empty, within MaxLength, made only of
// legal runes, and does not start with a digit.
func IsLegal(code string) bool {
	if code == "" || utf8.RuneCountInString(code) > MaxLength {
		return false
	}
	for idx, r := range code {
		if idx == 0 && isDigit(r) {
			return false
		}
		if !IsLegalRune(r) {
			return false
		}
	}
	return true
}

// Explain describes why code is illegal, or returns "" for legal codes.
func Explain(code string) string {
	switch {
	case code == "":
		return "code is empty"
	case utf8.RuneCountInString(code) > MaxLength:
		return fmt.Sprintf("code exceeds %d characters", MaxLength)
	}
	for idx, r := range code {
		if idx == 0 && isDigit(r) {
			return "code must not start with a digit"
		}
		if !IsLegalRune(r) {
			return fmt.Sprintf("character %q is not allowed", r)
		}
	}
	return ""
}

// Sanitize derives a code candidate from free text: runs of illegal
// characters collapse to a single "_", and a leading digit gains DigitPrefix.
// It returns "" when nothing legal remains.
func Sanitize(text string) string {
	var segments []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}
	}
	for _, r := range strings.TrimSpace(text) {
		if IsLegalRune(r) {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	out := strings.Join(segments, "_")
	if out == "" {
		return ""
	}
	if first, _ := utf8.DecodeRuneInString(out); isDigit(first) {
		out = DigitPrefix + out
	}
	return truncate(out, MaxLength)
}

func truncate(code string, limit int) string {
	if utf8.RuneCountInString(code) <= limit {
		return code
	}
	runes := []rune(code)
	return string(runes[:limit])
}

func isASCIIAlnum(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || isASCIIDigit(r)
}

func isASCIIDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isDigit(r rune) bool {
	if isASCIIDigit(r) {
		return true
	}
	props := width.LookupRune(r)
	return props.Kind() == width.EastAsianFullwidth && isASCIIDigit(props.Narrow())
}

func isFullwidthAlnum(r rune) bool {
	props := width.LookupRune(r)
	if props.Kind() != width.EastAsianFullwidth {
		return false
	}
	return isASCIIAlnum(props.Narrow())
}
