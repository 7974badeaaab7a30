package fieldcode

import (
	"strconv"
	"unicode/utf8"

	"github.com/goliatone/go-kintone-forms/pkg/diag"
)

// Source records where a resolved code came from.
type Source string

const (
	SourceExplicit Source = "code"
	SourceKey      Source = "key"
	SourceLabel    Source = "label"
)

// Resolution is the outcome of resolving one field's code.
type Resolution struct {
	Code string
	// Base is the candidate before deduplication.
	Base   string
	Source Source
	// Deduplicated is true when Base was taken and a numeric suffix was added.
	Deduplicated bool
}

// Candidate is the naming input for one field.
type Candidate struct {
	Key   string
	Code  string
	Label string
}

// Scope tracks the codes already used within one app or subtable for the
// duration of a single normalization call.
type Scope struct {
	used map[string]struct{}
}

// NewScope seeds a scope with codes that are already taken.
func NewScope(existing ...string) *Scope {
	s := &Scope{used: make(map[string]struct{}, len(existing))}
	for _, code := range existing {
		s.Reserve(code)
	}
	return s
}

// Reserve marks code as used.
func (s *Scope) Reserve(code string) {
	if code == "" {
		return
	}
	s.used[code] = struct{}{}
}

// Release frees code, used when an update renames a field away from it.
func (s *Scope) Release(code string) {
	delete(s.used, code)
}

// Contains reports whether code is taken.
func (s *Scope) Contains(code string) bool {
	_, ok := s.used[code]
	return ok
}

// Resolve picks a unique legal code for c and reserves it. Preference order:
// the explicit code, a code derived from the label, the map key when it is
// already legal. An explicit but illegal code is rejected outright; a field
// with neither a usable label nor a legal key cannot be named safely and
// yields MissingFieldCode.
func (s *Scope) Resolve(c Candidate, path string) (Resolution, error) {
	if c.Code != "" && !IsLegal(c.Code) {
		return Resolution{}, diag.Errorf(diag.CodeInvalidFieldCode, path,
			"code %q is not allowed: %s", c.Code, Explain(c.Code))
	}

	var res Resolution
	switch {
	case c.Code != "":
		res.Base, res.Source = c.Code, SourceExplicit
	case Sanitize(c.Label) != "":
		res.Base, res.Source = Sanitize(c.Label), SourceLabel
	case IsLegal(c.Key):
		res.Base, res.Source = c.Key, SourceKey
	}

	if res.Base == "" {
		return Resolution{}, diag.Errorf(diag.CodeMissingFieldCode, path,
			"key %q is not a usable code (%s) and no label to derive one from", c.Key, Explain(c.Key))
	}

	res.Code = s.unique(res.Base)
	res.Deduplicated = res.Code != res.Base
	s.Reserve(res.Code)
	return res, nil
}

// unique returns base, or base with the first free "_N" suffix. The base is
// shortened as needed so the result stays within MaxLength.
func (s *Scope) unique(base string) string {
	if !s.Contains(base) {
		return base
	}
	for n := 1; ; n++ {
		suffix := "_" + strconv.Itoa(n)
		candidate := truncate(base, MaxLength-utf8.RuneCountInString(suffix)) + suffix
		if !s.Contains(candidate) {
			return candidate
		}
	}
}
