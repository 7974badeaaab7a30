package fields

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/goliatone/go-kintone-forms/internal/ordered"
	"github.com/goliatone/go-kintone-forms/pkg/diag"
)

var indexPattern = regexp.MustCompile(`^\d+$`)

// OptionEntry is one selectable value of a choice field. Label and index are
// kept as decoded until normalization so type mistakes can be reported.
type OptionEntry struct {
	label any
	index any
	extra *ordered.Object
}

// NewOptionEntry builds a well-formed entry.
func NewOptionEntry(label, index string) OptionEntry {
	return OptionEntry{label: label, index: index}
}

// Label returns the label when it is a string.
func (e OptionEntry) Label() string {
	str, _ := e.label.(string)
	return str
}

// Index returns the index when it is a string.
func (e OptionEntry) Index() string {
	str, _ := e.index.(string)
	return str
}

// MarshalJSON writes label, index, then any extra attributes.
func (e OptionEntry) MarshalJSON() ([]byte, error) {
	out := ordered.NewObject()
	if e.label != nil {
		out.Set("label", e.label)
	}
	if e.index != nil {
		out.Set("index", e.index)
	}
	for _, key := range e.extra.Keys() {
		value, _ := e.extra.Get(key)
		out.Set(key, value)
	}
	return out.MarshalJSON()
}

// OptionSet is an ordered options map keyed by option key.
type OptionSet struct {
	keys    []string
	entries map[string]OptionEntry
	// invalid holds keys whose value was not an object.
	invalid map[string]any
}

// NewOptionSet returns an empty set.
func NewOptionSet() *OptionSet {
	return &OptionSet{entries: make(map[string]OptionEntry)}
}

func parseOptionSet(obj *ordered.Object) *OptionSet {
	set := NewOptionSet()
	for _, key := range obj.Keys() {
		value, _ := obj.Get(key)
		entryObj, ok := value.(*ordered.Object)
		if !ok {
			if set.invalid == nil {
				set.invalid = make(map[string]any)
			}
			set.invalid[key] = value
			set.keys = append(set.keys, key)
			continue
		}
		entry := OptionEntry{}
		for _, attr := range entryObj.Keys() {
			attrValue, _ := entryObj.Get(attr)
			switch attr {
			case "label":
				entry.label = attrValue
			case "index":
				entry.index = attrValue
			default:
				if entry.extra == nil {
					entry.extra = ordered.NewObject()
				}
				entry.extra.Set(attr, ordered.CloneValue(attrValue))
			}
		}
		set.Set(key, entry)
	}
	return set
}

// Set stores entry under key.
func (s *OptionSet) Set(key string, entry OptionEntry) {
	if s.entries == nil {
		s.entries = make(map[string]OptionEntry)
	}
	if _, exists := s.entries[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.entries[key] = entry
}

// Get returns the entry under key.
func (s *OptionSet) Get(key string) (OptionEntry, bool) {
	if s == nil {
		return OptionEntry{}, false
	}
	entry, ok := s.entries[key]
	return entry, ok
}

// Keys returns option keys in order.
func (s *OptionSet) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len reports the number of options.
func (s *OptionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Clone returns a deep copy.
func (s *OptionSet) Clone() *OptionSet {
	if s == nil {
		return nil
	}
	out := NewOptionSet()
	for _, key := range s.keys {
		if raw, bad := s.invalid[key]; bad {
			if out.invalid == nil {
				out.invalid = make(map[string]any)
			}
			out.invalid[key] = ordered.CloneValue(raw)
			out.keys = append(out.keys, key)
			continue
		}
		entry := s.entries[key]
		entry.extra = entry.extra.Clone()
		out.Set(key, entry)
	}
	return out
}

// MarshalJSON writes options in order.
func (s *OptionSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, key := range s.keys {
		if idx > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		var value any = s.entries[key]
		if raw, bad := s.invalid[key]; bad {
			value = raw
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NormalizeOptions rekeys every option so its key equals its label, then
// validates labels and indices. A missing or empty label is fatal. renamed
// maps each old key to its new key. Indices are never repaired: there is no safe
// ordering to infer, so any malformed index is fatal.
func NormalizeOptions(set *OptionSet, path string) (out *OptionSet, renamed map[string]string, diags diag.List, err error) {
	if set == nil {
		return nil, nil, nil, diag.Errorf(diag.CodeMissingOptions, path, "options are required")
	}

	out = NewOptionSet()
	origin := make(map[string]string, set.Len())
	for _, key := range set.keys {
		entryPath := diag.JoinPath(path, "["+key+"]")
		if raw, bad := set.invalid[key]; bad {
			return nil, nil, nil, diag.Errorf(diag.CodeInvalidOptionLabel, entryPath,
				"option must be an object with label and index, got %s", describe(raw))
		}
		entry := set.entries[key]

		label, ok := entry.label.(string)
		switch {
		case entry.label == nil:
			return nil, nil, nil, diag.Errorf(diag.CodeInvalidOptionLabel, entryPath, "label is required")
		case !ok:
			return nil, nil, nil, diag.Errorf(diag.CodeInvalidOptionLabel, entryPath,
				"label must be a string, got %s", describe(entry.label))
		case label == "":
			return nil, nil, nil, diag.Errorf(diag.CodeInvalidOptionLabel, entryPath, "label must not be empty")
		}

		target := key
		if label != key {
			target = label
			if renamed == nil {
				renamed = make(map[string]string)
			}
			renamed[key] = label
			diags.Warn(diag.CodeOptionRekeyed, entryPath, "option key %q rekeyed to match its label %q", key, label)
		}
		if previous, clash := origin[target]; clash {
			return nil, nil, nil, diag.Errorf(diag.CodeOptionLabelCollision, entryPath,
				"options %q and %q both resolve to label %q", previous, key, target)
		}
		origin[target] = key
		out.Set(target, entry)
	}

	seen := make(map[int]string, out.Len())
	for _, key := range out.keys {
		entryPath := diag.JoinPath(path, "["+key+"]", "index")
		index, err := parseIndex(out.entries[key].index, entryPath)
		if err != nil {
			return nil, nil, nil, err
		}
		if other, dup := seen[index]; dup {
			return nil, nil, nil, diag.Errorf(diag.CodeInvalidOptionIndex, entryPath,
				"index %d is already used by option %q", index, other)
		}
		seen[index] = key
	}

	return out, renamed, diags, nil
}

func parseIndex(raw any, path string) (int, error) {
	if raw == nil {
		return 0, diag.Errorf(diag.CodeInvalidOptionIndex, path, "index is required")
	}
	str, ok := raw.(string)
	if !ok {
		return 0, diag.Errorf(diag.CodeInvalidOptionIndex, path, "index must be a string, got %s", describe(raw))
	}
	if !indexPattern.MatchString(str) {
		return 0, diag.Errorf(diag.CodeInvalidOptionIndex, path, "index %q must be a non-negative integer", str)
	}
	value, err := strconv.Atoi(str)
	if err != nil || value < 0 {
		return 0, diag.Errorf(diag.CodeInvalidOptionIndex, path, "index %q is out of range", str)
	}
	return value, nil
}
