// Package codec converts structured cache values to and from their stored JSON text.
//
// Values use a canonical model: map[string]any, []any, string, bool, int64, float64 and nil,
// nested arbitrarily. Decoding parses JSON; stored text is never evaluated.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"

	apperrors "github.com/charlesng35/urlcache/pkg/errors"
)

var timeType = reflect.TypeOf(time.Time{})

// Normalize validates v and converts it into the canonical value model. The top level must be a
// mapping or a sequence; structs are flattened into mappings.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, apperrors.ErrInvalidValue.WithMessage("value must not be nil")
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, apperrors.ErrInvalidValue.WithMessage("value must not be nil")
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil, apperrors.ErrInvalidValue.WithMessage("value must not be nil")
		}
	case reflect.Array:
	case reflect.Struct:
		if rv.Type() == timeType {
			return nil, apperrors.ErrInvalidValue.WithMessage("value must be a sequence or a mapping, got time.Time")
		}
	default:
		return nil, apperrors.ErrInvalidValue.WithMessage(fmt.Sprintf("value must be a sequence or a mapping, got %s", rv.Type()))
	}

	if err := checkAcyclic(rv, "$", map[visit]struct{}{}); err != nil {
		return nil, err
	}
	return normalize(rv, "$")
}

// visit identifies a map, slice or pointer currently being walked. Slices sharing a backing
// array but differing in length are distinct values.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// checkAcyclic fails when v refers back to a map, slice or pointer that encloses it. Shared
// but acyclic references are allowed.
func checkAcyclic(rv reflect.Value, path string, active map[visit]struct{}) error {
	enter := func(v visit, walk func() error) error {
		if _, seen := active[v]; seen {
			return invalidAt(path, "cyclic value")
		}
		active[v] = struct{}{}
		defer delete(active, v)
		return walk()
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return enter(visit{ptr: rv.Pointer(), typ: rv.Type()}, func() error {
			return checkAcyclic(rv.Elem(), path, active)
		})
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return checkAcyclic(rv.Elem(), path, active)
	case reflect.Map:
		if rv.IsNil() || rv.Len() == 0 {
			return nil
		}
		return enter(visit{ptr: rv.Pointer(), typ: rv.Type()}, func() error {
			iter := rv.MapRange()
			for iter.Next() {
				if err := checkAcyclic(iter.Value(), fmt.Sprintf("%s.%v", path, iter.Key()), active); err != nil {
					return err
				}
			}
			return nil
		})
	case reflect.Slice:
		if rv.IsNil() || rv.Len() == 0 {
			return nil
		}
		return enter(visit{ptr: rv.Pointer(), typ: rv.Type(), len: rv.Len()}, func() error {
			return checkElements(rv, path, active)
		})
	case reflect.Array:
		return checkElements(rv, path, active)
	case reflect.Struct:
		if rv.Type() == timeType {
			return nil
		}
		for i := 0; i < rv.NumField(); i++ {
			field := rv.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			if err := checkAcyclic(rv.Field(i), path+"."+field.Name, active); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkElements(rv reflect.Value, path string, active map[visit]struct{}) error {
	for i := 0; i < rv.Len(); i++ {
		if err := checkAcyclic(rv.Index(i), fmt.Sprintf("%s[%d]", path, i), active); err != nil {
			return err
		}
	}
	return nil
}

func normalize(rv reflect.Value, path string) (any, error) {
	if !rv.IsValid() {
		return nil, nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem(), path)
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, invalidAt(path, "unsigned integer overflows int64")
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalidAt(path, "NaN and infinities are not representable")
		}
		return f, nil
	case reflect.String:
		if !utf8.ValidString(rv.String()) {
			return nil, invalidAt(path, "string is not valid UTF-8")
		}
		return rv.String(), nil
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := normalize(rv.Index(i), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, invalidAt(path, fmt.Sprintf("mapping keys must be strings, got %s", rv.Type().Key()))
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			if !utf8.ValidString(key) {
				return nil, invalidAt(path, fmt.Sprintf("mapping key %q is not valid UTF-8", key))
			}
			item, err := normalize(iter.Value(), path+"."+key)
			if err != nil {
				return nil, err
			}
			out[key] = item
		}
		return out, nil
	case reflect.Struct:
		if rv.Type() == timeType {
			return rv.Interface().(time.Time).UTC().Format(time.RFC3339Nano), nil
		}
		flat := map[string]any{}
		if err := mapstructure.Decode(rv.Interface(), &flat); err != nil {
			return nil, invalidAt(path, err.Error())
		}
		return normalize(reflect.ValueOf(flat), path)
	default:
		return nil, invalidAt(path, fmt.Sprintf("unsupported type %s", rv.Type()))
	}
}

func invalidAt(path, reason string) error {
	return apperrors.ErrInvalidValue.WithMessage(fmt.Sprintf("value at %s: %s", path, reason))
}

// Encode normalizes v and renders it as JSON text. Mapping keys are written in sorted order and
// floats always carry a fraction or exponent so they decode back as floats.
func Encode(v any) (string, error) {
	canonical, err := Normalize(v)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := write(&buf, canonical); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func write(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		buf.WriteString(formatFloat(val))
	case string:
		return writeString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := write(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := write(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return apperrors.ErrInvalidValue.WithMessage(fmt.Sprintf("unsupported type %T", v))
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Decode parses text produced by Encode. Malformed text, trailing data and top-level scalars fail
// with ErrDecode.
func Decode(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, apperrors.ErrDecode.WithInternal(err)
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected trailing data")
		}
		return nil, apperrors.ErrDecode.WithInternal(err)
	}

	switch raw.(type) {
	case map[string]any, []any:
	default:
		return nil, apperrors.ErrDecode.WithMessage(fmt.Sprintf("stored data must be a sequence or a mapping, got %T", raw))
	}

	return fromJSON(raw)
}

func fromJSON(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		return parseNumber(val)
	case []any:
		for i, item := range val {
			converted, err := fromJSON(item)
			if err != nil {
				return nil, err
			}
			val[i] = converted
		}
		return val, nil
	case map[string]any:
		for k, item := range val {
			converted, err := fromJSON(item)
			if err != nil {
				return nil, err
			}
			val[k] = converted
		}
		return val, nil
	default:
		return v, nil
	}
}

func parseNumber(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, apperrors.ErrDecode.WithInternal(err)
	}
	return f, nil
}

// DecodeInto decodes text and copies the result into out, which must be a pointer to a struct,
// map or slice.
func DecodeInto(text string, out any) error {
	value, err := Decode(text)
	if err != nil {
		return err
	}
	return Assign(value, out)
}

// Assign copies a canonical value into out using mapstructure's weak typing, so int64 fields
// populate int, float32 and similar targets.
func Assign(value any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return apperrors.ErrInvalidValue.WithInternal(err)
	}
	if err := decoder.Decode(value); err != nil {
		return apperrors.ErrDecode.WithInternal(err)
	}
	return nil
}
