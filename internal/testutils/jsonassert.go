package testutils

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// PresencePlaceholder in an expected document matches any actual value, as
// long as the key exists. Used for timestamps and generated identifiers.
const PresencePlaceholder = "<<PRESENCE>>"

// JSONAsserter compares JSON documents structurally and reports differences
// as a readable diff. Extra keys on the actual side are ignored, so expected
// documents only need to pin the fields under test.
type JSONAsserter struct {
	t *testing.T

	// StrictKeys fails on keys present in actual but absent from expected.
	StrictKeys bool
}

func NewJSONAsserter(t *testing.T) *JSONAsserter {
	return &JSONAsserter{t: t}
}

// Assert compares actualJSON against expectedJSON and fails the test with a
// formatted diff on mismatch.
func (ja *JSONAsserter) Assert(actualJSON, expectedJSON string) {
	ja.t.Helper()
	if diff := ja.diff(actualJSON, expectedJSON); diff != "" {
		ja.t.Errorf("JSON mismatch:\n%s", diff)
	}
}

// AssertValue marshals v and compares it against expectedJSON.
func (ja *JSONAsserter) AssertValue(v any, expectedJSON string) {
	ja.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		ja.t.Errorf("marshal actual value: %v", err)
		return
	}
	ja.Assert(string(data), expectedJSON)
}

func (ja *JSONAsserter) diff(actualJSON, expectedJSON string) string {
	var expected, actual any
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Sprintf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return fmt.Sprintf("invalid actual JSON: %v", err)
	}

	resolvePlaceholders(expected, actual)
	if !ja.StrictKeys {
		pruneExtraKeys(actual, expected)
	}

	expectedBytes, _ := json.Marshal(expected)
	actualBytes, _ := json.Marshal(actual)

	diff, err := gojsondiff.New().Compare(expectedBytes, actualBytes)
	if err != nil {
		return fmt.Sprintf("JSON comparison failed: %v", err)
	}
	if !diff.Modified() {
		return ""
	}

	f := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
	})
	out, _ := f.Format(diff)
	return out
}

// resolvePlaceholders copies actual values over PresencePlaceholder markers
// so they compare equal when the key is present.
func resolvePlaceholders(expected, actual any) {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return
		}
		for k, v := range exp {
			if s, ok := v.(string); ok && s == PresencePlaceholder {
				if actVal, present := act[k]; present {
					exp[k] = actVal
				}
				continue
			}
			resolvePlaceholders(v, act[k])
		}
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return
		}
		for i := range exp {
			if i < len(act) {
				resolvePlaceholders(exp[i], act[i])
			}
		}
	}
}

// pruneExtraKeys removes keys from actual that expected does not mention.
func pruneExtraKeys(actual, expected any) {
	switch act := actual.(type) {
	case map[string]any:
		exp, ok := expected.(map[string]any)
		if !ok {
			return
		}
		for k := range act {
			expVal, present := exp[k]
			if !present {
				delete(act, k)
				continue
			}
			pruneExtraKeys(act[k], expVal)
		}
	case []any:
		exp, ok := expected.([]any)
		if !ok {
			return
		}
		for i := range act {
			if i < len(exp) {
				pruneExtraKeys(act[i], exp[i])
			}
		}
	}
}
