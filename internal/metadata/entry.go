package metadata

import (
	"regexp"
	"strconv"
	"strings"
)

// vocabulary classifies raw attribute values: document/boolean/paper/orientation
// tokens, or a run of digits with an optional px/in unit.
var vocabulary = regexp.MustCompile(`(?mi)(\bhtml\b|\bfalse\b|\btrue\b|\ba(4|3)\b|\bl\b|\bp\b)|(\d+)\s?(px|in)?|$`)

// Entry is a classified metadata value.
type Entry struct {
	Value string `json:"value" yaml:"value"`
	Unit  string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Classify matches raw against the fixed vocabulary. The first match wins: a
// numeric match yields its digits and unit, a token match yields the token itself,
// and anything unrecognised yields an empty value.
func Classify(raw string) Entry {
	m := vocabulary.FindStringSubmatch(raw)
	if m == nil {
		return Entry{}
	}
	if m[3] != "" {
		return Entry{Value: m[3], Unit: strings.ToLower(m[4])}
	}
	return Entry{Value: m[0]}
}

func (e Entry) String() string { return e.Value + e.Unit }

// Int parses the value as an integer.
func (e Entry) Int() (int, bool) {
	n, err := strconv.Atoi(e.Value)
	return n, err == nil
}

// Float parses the value as a float.
func (e Entry) Float() (float64, bool) {
	f, err := strconv.ParseFloat(e.Value, 64)
	return f, err == nil
}

// Bool interprets the value as a boolean flag. The second result is false when
// the value is neither a truthy nor a falsy token.
func (e Entry) Bool() (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(e.Value)) {
	case "1", "true", "on", "yes":
		return true, true
	case "0", "false", "off", "no", "":
		return false, true
	default:
		return false, false
	}
}
