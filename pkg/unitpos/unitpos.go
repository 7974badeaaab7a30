// Package unitpos decides whether a numeric field's unit symbol is rendered
// before or after the value.
package unitpos

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Position is the placement side of a unit symbol.
type Position string

const (
	Before Position = "BEFORE"
	After  Position = "AFTER"
)

// DefaultBefore lists currency-style symbols conventionally written ahead of
// the amount.
var DefaultBefore = []string{
	"$", "¥", "€", "£", "₩", "₹", "₽", "₺", "₫", "₱", "₪", "₦", "฿", "¢", "₿", "￥", "＄",
}

// DefaultAfter lists suffix units.
var DefaultAfter = []string{
	"円", "%", "％", "個", "人", "件", "回", "本", "枚", "台", "点", "冊", "匹", "頭", "杯", "箱",
	"歳", "才", "年", "月", "日", "時", "分", "秒", "週", "ヶ月", "か月", "時間",
	"kg", "g", "mg", "t", "m", "cm", "mm", "km", "L", "l", "ml", "mL", "℃", "°",
	"ドル", "ユーロ", "元", "ウォン", "ポンド", "倍", "割", "坪", "畳",
}

// Classifier maps unit symbols to a Position. A zero Classifier uses the
// default pattern sets.
type Classifier struct {
	before []string
	after  []string
}

// New builds a classifier from explicit pattern sets. Nil slices fall back to
// the defaults; empty patterns are ignored.
func New(before, after []string) *Classifier {
	if before == nil {
		before = DefaultBefore
	}
	if after == nil {
		after = DefaultAfter
	}
	return &Classifier{before: compact(before), after: compact(after)}
}

// Default returns a classifier over DefaultBefore and DefaultAfter.
func Default() *Classifier {
	return New(nil, nil)
}

// Classify returns the placement for unit.
func (c *Classifier) Classify(unit string) Position {
	pos, _ := c.Explain(unit)
	return pos
}

// Explain returns the placement together with the rule that decided it.
func (c *Classifier) Explain(unit string) (Position, string) {
	if c == nil || (c.before == nil && c.after == nil) {
		c = Default()
	}

	if unit == "" {
		return After, "no unit given, defaulting to AFTER"
	}
	length := utf8.RuneCountInString(unit)
	if length >= 4 {
		return After, "units of four or more characters read as suffixes"
	}
	if isCompound(unit, length) {
		return After, "compound unit reads as a suffix"
	}

	inBefore := contains(c.before, unit)
	inAfter := contains(c.after, unit)
	switch {
	case inBefore && inAfter:
		return After, "listed as both prefix and suffix, suffix wins"
	case inBefore:
		return Before, "listed as a prefix unit"
	case inAfter:
		return After, "listed as a suffix unit"
	}

	partialBefore := containsPattern(c.before, unit)
	partialAfter := containsPattern(c.after, unit)
	switch {
	case partialBefore && partialAfter:
		return After, "contains both prefix and suffix patterns, suffix wins"
	case partialBefore:
		return Before, "contains a prefix pattern"
	case partialAfter:
		return After, "contains a suffix pattern"
	}

	return After, "unrecognised unit, defaulting to AFTER"
}

func isCompound(unit string, length int) bool {
	if strings.ContainsAny(unit, " /-+") {
		return true
	}
	if length <= 1 {
		return false
	}
	for _, r := range unit {
		if !isUnitRune(r) {
			return true
		}
	}
	return false
}

func isUnitRune(r rune) bool {
	switch {
	case r == '_', r == 'ー':
		return true
	case r < utf8.RuneSelf:
		return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
	default:
		return unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han)
	}
}

func contains(list []string, unit string) bool {
	for _, item := range list {
		if item == unit {
			return true
		}
	}
	return false
}

func containsPattern(list []string, unit string) bool {
	for _, item := range list {
		if strings.Contains(unit, item) {
			return true
		}
	}
	return false
}

func compact(list []string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
