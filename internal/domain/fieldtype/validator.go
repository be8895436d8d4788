package fieldtype

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidValue is wrapped by every coercion failure.
var ErrInvalidValue = errors.New("invalid value")

// Date and datetime string layouts accepted on input.
const (
	DateLayout      = "2006-01-02"
	DatetimeLayoutT = "2006-01-02T15:04:05"
	DatetimeLayout  = "2006-01-02 15:04:05"
)

// Validator coerces a loosely typed value into the canonical Go value of one field type.
//
// Canonical values: int64, float64, string, bool, time.Time (UTC) and sorted []string.
type Validator interface {
	Validate(raw any) (any, error)
	// ValidateDefault is Validate that maps a nil default to nil.
	ValidateDefault(raw any) (any, error)
}

type factory func(options []string) Validator

var registry = map[Type]factory{
	Integer:     func([]string) Validator { return integerValidator{} },
	Float:       func([]string) Validator { return floatValidator{} },
	String:      func([]string) Validator { return stringValidator{} },
	Boolean:     func([]string) Validator { return booleanValidator{} },
	Date:        func([]string) Validator { return dateValidator{} },
	Datetime:    func([]string) Validator { return datetimeValidator{} },
	Select:      func(o []string) Validator { return selectValidator{options: o} },
	MultiSelect: func(o []string) Validator { return multiSelectValidator{options: o} },
}

// For returns the validator for t with the option set bound for this call.
// Options are ignored by types that do not use them.
func For(t Type, options []string) (Validator, error) {
	f, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("unknown field type %q", t)
	}
	return f(options), nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidValue)
}

func validateDefault(v Validator, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	return v.Validate(raw)
}

type integerValidator struct{}

func (v integerValidator) Validate(raw any) (any, error) {
	switch x := raw.(type) {
	case bool:
		return nil, invalid("boolean value %v is not an integer", x)
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return uintToInt64(uint64(x))
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return uintToInt64(x)
	case float32:
		return floatToInt64(float64(x))
	case float64:
		return floatToInt64(x)
	case json.Number:
		return parseInteger(string(x))
	case string:
		return parseInteger(x)
	default:
		return nil, invalid("cannot convert %T to integer", raw)
	}
}

func (v integerValidator) ValidateDefault(raw any) (any, error) { return validateDefault(v, raw) }

func uintToInt64(x uint64) (any, error) {
	if x > math.MaxInt64 {
		return nil, invalid("value %d overflows integer", x)
	}
	return int64(x), nil
}

func floatToInt64(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, invalid("value %v is not a finite number", f)
	}
	if f != math.Trunc(f) {
		return nil, invalid("value %v has a fractional part", f)
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return nil, invalid("value %v overflows integer", f)
	}
	return int64(f), nil
}

func parseInteger(s string) (any, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, invalid("cannot convert %q to integer", s)
	}
	return floatToInt64(f)
}

type floatValidator struct{}

func (v floatValidator) Validate(raw any) (any, error) {
	switch x := raw.(type) {
	case bool:
		return nil, invalid("boolean value %v is not a number", x)
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		return parseFloat(string(x))
	case string:
		return parseFloat(x)
	default:
		return nil, invalid("cannot convert %T to float", raw)
	}
}

func (v floatValidator) ValidateDefault(raw any) (any, error) { return validateDefault(v, raw) }

func parseFloat(s string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, invalid("cannot convert %q to float", s)
	}
	return f, nil
}

type stringValidator struct{}

func (v stringValidator) Validate(raw any) (any, error) { return Format(raw), nil }

func (v stringValidator) ValidateDefault(raw any) (any, error) { return validateDefault(v, raw) }

var (
	trueStrings  = map[string]bool{"true": true, "1": true, "yes": true}
	falseStrings = map[string]bool{"false": true, "0": true, "no": true}
)

type booleanValidator struct{}

func (v booleanValidator) Validate(raw any) (any, error) {
	switch x := raw.(type) {
	case bool:
		return x, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if trueStrings[s] {
			return true, nil
		}
		if falseStrings[s] {
			return false, nil
		}
		return nil, invalid("cannot convert %q to boolean", x)
	default:
		return nil, invalid("cannot convert %T to boolean", raw)
	}
}

func (v booleanValidator) ValidateDefault(raw any) (any, error) { return validateDefault(v, raw) }

type dateValidator struct{}

func (v dateValidator) Validate(raw any) (any, error) {
	switch x := raw.(type) {
	case time.Time:
		return midnight(x), nil
	case string:
		t, err := time.Parse(DateLayout, strings.TrimSpace(x))
		if err != nil {
			return nil, invalid("invalid date %q, expected YYYY-MM-DD", x)
		}
		return t, nil
	default:
		return nil, invalid("cannot convert %T to date", raw)
	}
}

func (v dateValidator) ValidateDefault(raw any) (any, error) { return validateDefault(v, raw) }

// midnight keeps the wall-clock date of t and drops both time and offset.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type datetimeValidator struct{}

func (v datetimeValidator) Validate(raw any) (any, error) {
	switch x := raw.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		t, err := parseDatetime(strings.TrimSpace(x))
		if err != nil {
			return nil, invalid("invalid datetime %q, expected YYYY-MM-DD HH:MM:SS", x)
		}
		return t, nil
	default:
		return nil, invalid("cannot convert %T to datetime", raw)
	}
}

func (v datetimeValidator) ValidateDefault(raw any) (any, error) { return validateDefault(v, raw) }

func parseDatetime(s string) (time.Time, error) {
	t, err := time.Parse(DatetimeLayoutT, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(DatetimeLayout, s)
}

type selectValidator struct {
	options []string
}

func (v selectValidator) Validate(raw any) (any, error) {
	if len(v.options) == 0 {
		return nil, invalid("select options are not set")
	}
	s := Format(raw)
	if !slices.Contains(v.options, s) {
		return nil, invalid("Value must be one of: %s", strings.Join(sortedCopy(v.options), ", "))
	}
	return s, nil
}

func (v selectValidator) ValidateDefault(raw any) (any, error) { return validateDefault(v, raw) }

type multiSelectValidator struct {
	options []string
}

func (v multiSelectValidator) Validate(raw any) (any, error) {
	if len(v.options) == 0 {
		return nil, invalid("multi select options are not set")
	}

	var values []string
	switch x := raw.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return []string{}, nil
		}
		for _, part := range strings.Split(x, ",") {
			values = append(values, strings.TrimSpace(part))
		}
	case []string:
		values = append(values, x...)
	case []any:
		for _, item := range x {
			values = append(values, Format(item))
		}
	default:
		return nil, invalid("cannot convert %T to a list of options", raw)
	}

	var bad []string
	for _, s := range values {
		if !slices.Contains(v.options, s) {
			bad = append(bad, s)
		}
	}
	if len(bad) > 0 {
		slices.Sort(bad)
		return nil, invalid("Invalid values: %s. Must be from: %s",
			strings.Join(bad, ", "), strings.Join(sortedCopy(v.options), ", "))
	}

	slices.Sort(values)
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func (v multiSelectValidator) ValidateDefault(raw any) (any, error) { return validateDefault(v, raw) }

func sortedCopy(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}
