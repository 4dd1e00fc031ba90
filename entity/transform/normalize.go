package transform

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	ErrNotPairList   = errors.New("field is not a list of key/value pairs")
	ErrMalformedPair = errors.New("malformed key/value pair")
)

const (
	pairKeyField   = "key"
	pairValueField = "value"
)

// NormalizePairs converts a JSON array of key/value pair objects, e.g.
//
//	[{"key":"x","value":5},{"key":"y","value":"z"}]
//
// into a JSON object mapping each key to its value:
//
//	{"x":5,"y":"z"}
//
// Keys and values are kept as raw JSON text. If a key occurs more than once the last value wins, while
// the key keeps the position of its first occurrence.
// Each pair must be an object with a string "key" and a "value" (null is a valid value),
// otherwise ErrMalformedPair is returned. Input not being a JSON array gives ErrNotPairList.
func NormalizePairs(pairs []byte) ([]byte, error) {

	if !gjson.ValidBytes(pairs) {
		return nil, fmt.Errorf("%w, invalid JSON", ErrNotPairList)
	}
	list := gjson.ParseBytes(pairs)
	if !list.IsArray() {
		return nil, fmt.Errorf("%w, got: %.64s", ErrNotPairList, string(pairs))
	}

	var (
		keys    []string
		rawKeys = make(map[string]string)
		values  = make(map[string]string)
		err    error
	)

	i := 0
	list.ForEach(func(_, item gjson.Result) bool {
		defer func() { i++ }()
		if !item.IsObject() {
			err = fmt.Errorf("%w at index %d, not an object", ErrMalformedPair, i)
			return false
		}
		key := item.Get(pairKeyField)
		if key.Type != gjson.String {
			err = fmt.Errorf("%w at index %d, missing or non-string key", ErrMalformedPair, i)
			return false
		}
		value := item.Get(pairValueField)
		if !value.Exists() {
			err = fmt.Errorf("%w at index %d, missing value for key '%s'", ErrMalformedPair, i, key.Str)
			return false
		}
		if _, seen := values[key.Str]; !seen {
			keys = append(keys, key.Str)
			rawKeys[key.Str] = key.Raw
		}
		values[key.Str] = value.Raw
		return true
	})
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(pairs))
	out = append(out, '{')
	for i, key := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, rawKeys[key]...)
		out = append(out, ':')
		out = append(out, values[key]...)
	}
	out = append(out, '}')
	return out, nil
}
