package settings

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrInvalidInput is returned when a raw submission cannot be parsed at all.
var ErrInvalidInput = errors.New("invalid settings input")

// Input is a raw, untrusted settings submission. It is a JSON document read
// through gjson; nothing past the sanitizer ever sees it.
type Input struct {
	raw []byte
}

// ParseJSON wraps a JSON object body.
func ParseJSON(body []byte) (Input, error) {
	if !gjson.ValidBytes(body) {
		return Input{}, fmt.Errorf("%w: malformed JSON", ErrInvalidInput)
	}
	if !gjson.ParseBytes(body).IsObject() {
		return Input{}, fmt.Errorf("%w: expected a JSON object", ErrInvalidInput)
	}
	return Input{raw: body}, nil
}

// ParseForm converts form values into an Input. Bracketed keys are nested the
// way HTML settings forms submit them: "button_links[0][text]" becomes
// button_links.0.text and "post_types[]" appends to post_types.
func ParseForm(values url.Values) (Input, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return naturalLess(keys[i], keys[j]) })

	raw := []byte(`{}`)
	var err error
	for _, key := range keys {
		path, appendValues := formPath(key)
		if path == "" {
			continue
		}
		vals := values[key]
		if appendValues {
			for _, v := range vals {
				if raw, err = sjson.SetBytes(raw, path+".-1", v); err != nil {
					return Input{}, fmt.Errorf("%w: field %q: %v", ErrInvalidInput, key, err)
				}
			}
			continue
		}
		if len(vals) == 0 {
			continue
		}
		if raw, err = sjson.SetBytes(raw, path, vals[len(vals)-1]); err != nil {
			return Input{}, fmt.Errorf("%w: field %q: %v", ErrInvalidInput, key, err)
		}
	}
	return Input{raw: raw}, nil
}

// naturalLess orders keys so that "links[2]" sorts before "links[10]".
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ad, bd := isDigit(a[0]), isDigit(b[0])
		if ad && bd {
			na, restA := leadingDigits(a)
			nb, restB := leadingDigits(b)
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			a, b = restA, restB
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func leadingDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return strings.TrimLeft(s[:i], "0"), s[i:]
}

var pathEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

// formPath turns a bracketed form key into an sjson path.
func formPath(key string) (string, bool) {
	name, rest, _ := strings.Cut(key, "[")
	if name == "" {
		return "", false
	}
	parts := []string{pathEscaper.Replace(name)}
	appendValues := false
	for rest != "" {
		seg, after, ok := strings.Cut(rest, "]")
		if !ok {
			break
		}
		if seg == "" {
			appendValues = true
		} else {
			parts = append(parts, pathEscaper.Replace(seg))
		}
		rest = strings.TrimPrefix(after, "[")
	}
	return strings.Join(parts, "."), appendValues
}

func (in Input) get(key string) gjson.Result {
	if len(in.raw) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(in.raw, pathEscaper.Replace(key))
}

// Keys lists the top-level keys in submission order.
func (in Input) Keys() []string {
	var keys []string
	if len(in.raw) == 0 {
		return keys
	}
	gjson.ParseBytes(in.raw).ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	return keys
}

// Has reports whether a key was submitted.
func (in Input) Has(key string) bool {
	return in.get(key).Exists()
}

// String returns a scalar field as text. Objects and arrays yield "".
func (in Input) String(key string) string {
	r := in.get(key)
	if r.IsObject() || r.IsArray() {
		return ""
	}
	return r.String()
}

// Scalar reports whether a submitted key holds a string, number, boolean or
// null rather than an object or array.
func (in Input) Scalar(key string) bool {
	r := in.get(key)
	return r.Exists() && !r.IsObject() && !r.IsArray()
}

// Int returns a numeric field. Strings are trimmed and read up to their
// first non-numeric character, so "3.5" and "3 " are both 3. Anything else
// is 0.
func (in Input) Int(key string) int64 {
	r := in.get(key)
	if r.IsObject() || r.IsArray() {
		return 0
	}
	if r.Type != gjson.String {
		return r.Int()
	}
	return leadingInt(strings.TrimSpace(r.Str))
}

// leadingInt parses the optionally signed integer that starts s, truncating
// any fraction.
func leadingInt(s string) int64 {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && math.Abs(f) < math.MaxInt64 {
		return int64(f)
	}
	sign, rest := "", s
	if rest != "" && (rest[0] == '-' || rest[0] == '+') {
		sign, rest = rest[:1], rest[1:]
	}
	i := 0
	for i < len(rest) && isDigit(rest[i]) {
		i++
	}
	n, _ := strconv.ParseInt(sign+rest[:i], 10, 64)
	return n
}

// Strings returns an array field as a list of strings. A scalar yields a
// single element list.
func (in Input) Strings(key string) []string {
	r := in.get(key)
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	if !r.IsArray() {
		if r.IsObject() {
			return objectValues(r)
		}
		return []string{r.String()}
	}
	var out []string
	for _, item := range r.Array() {
		if item.IsObject() || item.IsArray() {
			continue
		}
		out = append(out, item.String())
	}
	return out
}

// List returns a comma separated or array field as its parts, untrimmed.
func (in Input) List(key string) []string {
	r := in.get(key)
	if r.IsArray() {
		return in.Strings(key)
	}
	s := r.String()
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Objects returns an array (or index keyed object) of objects as string maps.
func (in Input) Objects(key string) []map[string]string {
	r := in.get(key)
	var items []gjson.Result
	switch {
	case r.IsArray():
		items = r.Array()
	case r.IsObject():
		// Form posts with sparse indexes arrive as {"0": {...}, "3": {...}}.
		r.ForEach(func(_, v gjson.Result) bool {
			items = append(items, v)
			return true
		})
	}
	var out []map[string]string
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		m := make(map[string]string)
		item.ForEach(func(k, v gjson.Result) bool {
			if !v.IsObject() && !v.IsArray() {
				m[k.String()] = v.String()
			}
			return true
		})
		out = append(out, m)
	}
	return out
}

func objectValues(r gjson.Result) []string {
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		if !v.IsObject() && !v.IsArray() {
			out = append(out, v.String())
		}
		return true
	})
	return out
}

// Without returns a copy of the input with the given top-level keys removed.
// Transport fields such as anti-forgery tokens are dropped this way before
// sanitizing.
func (in Input) Without(keys ...string) Input {
	raw := in.raw
	for _, key := range keys {
		if !in.Has(key) {
			continue
		}
		next, err := sjson.DeleteBytes(raw, pathEscaper.Replace(key))
		if err != nil {
			continue
		}
		raw = next
	}
	return Input{raw: raw}
}
