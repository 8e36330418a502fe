// Package decode provides the shared transform steps used by sources and
// embed resolvers to undo the obfuscation schemes streaming sites layer over
// their payloads. Each step is a pure function; providers compose them into
// named pipelines so a scheme change upstream is a one-line pipeline edit.
package decode

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports malformed input to a transform step. Upstream sites
// change their encoding without notice, so every step must fail with this
// type instead of panicking or surfacing unrelated runtime errors.
type ParseError struct {
	Step string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Step, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Step is a single named transform in a pipeline.
type Step struct {
	Name  string
	Apply func(string) (string, error)
}

// Pipeline is an ordered list of transform steps.
type Pipeline []Step

// Run applies every step in order, failing with the offending step's
// ParseError on the first malformed input.
func (p Pipeline) Run(input string) (string, error) {
	out := input
	for _, step := range p {
		var err error
		out, err = step.Apply(out)
		if err != nil {
			if pe, ok := err.(*ParseError); ok {
				return "", pe
			}
			return "", &ParseError{Step: step.Name, Err: err}
		}
	}
	return out, nil
}

// Reverse returns a step that reverses the string rune-wise.
func Reverse() Step {
	return Step{Name: "reverse", Apply: func(in string) (string, error) {
		runes := []rune(in)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	}}
}

// Shift returns a step that subtracts n from every byte, undoing the
// character-shift obfuscation some embed hosts apply after base64.
func Shift(n int) Step {
	return Step{Name: "shift", Apply: func(in string) (string, error) {
		out := make([]byte, len(in))
		for i := 0; i < len(in); i++ {
			out[i] = byte(int(in[i]) - n)
		}
		return string(out), nil
	}}
}

// Base64 returns a guarded standard-alphabet base64 decode step. Missing
// padding is repaired before decoding; anything else malformed fails with a
// ParseError.
func Base64() Step {
	return Step{Name: "base64", Apply: decodeBase64}
}

// Base64Layers returns a step that applies the guarded base64 decode n times,
// for sites that wrap their payload in several encoding layers.
func Base64Layers(n int) Step {
	return Step{Name: fmt.Sprintf("base64x%d", n), Apply: func(in string) (string, error) {
		out := in
		for i := 0; i < n; i++ {
			var err error
			out, err = decodeBase64(out)
			if err != nil {
				return "", err
			}
		}
		return out, nil
	}}
}

func decodeBase64(in string) (string, error) {
	s := strings.TrimSpace(in)
	// URL-safe variants show up interchangeably with the standard alphabet.
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", &ParseError{Step: "base64", Err: err}
	}
	return string(raw), nil
}

// JSONString returns a step that unwraps one level of JSON string encoding,
// i.e. input `"{\"a\":1}"` becomes `{"a":1}`.
func JSONString() Step {
	return Step{Name: "json-string", Apply: func(in string) (string, error) {
		var out string
		if err := json.Unmarshal([]byte(in), &out); err != nil {
			return "", &ParseError{Step: "json-string", Err: err}
		}
		return out, nil
	}}
}

// JSONField returns a step that parses the input as a JSON object and
// extracts the named top-level string field.
func JSONField(field string) Step {
	return Step{Name: "json-field:" + field, Apply: func(in string) (string, error) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(in), &obj); err != nil {
			return "", &ParseError{Step: "json-field", Err: err}
		}
		raw, ok := obj[field]
		if !ok {
			return "", &ParseError{Step: "json-field", Err: fmt.Errorf("missing field %q", field)}
		}
		var out string
		if err := json.Unmarshal(raw, &out); err != nil {
			// Field may be a nested object rather than a string.
			return string(raw), nil
		}
		return out, nil
	}}
}

// Unmarshal parses the pipeline output into dest, with the decode failure
// contract (ParseError, never a raw json error).
func Unmarshal(data string, dest any) error {
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return &ParseError{Step: "json", Err: err}
	}
	return nil
}
