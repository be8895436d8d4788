package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Normalize converts a value decoded from BSON into the plain Go shapes the domain works
// with: int32 widens to int64, datetimes become UTC time.Time, arrays of strings become
// []string and embedded documents become map[string]any.
func Normalize(v any) any {
	switch x := v.(type) {
	case int32:
		return int64(x)
	case primitive.DateTime:
		return x.Time().UTC()
	case time.Time:
		return x.UTC()
	case primitive.A:
		return normalizeArray(x)
	case []any:
		return normalizeArray(x)
	case primitive.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			m[e.Key] = Normalize(e.Value)
		}
		return m
	case primitive.M:
		return NormalizeMap(x)
	case map[string]any:
		return NormalizeMap(x)
	default:
		return v
	}
}

// NormalizeMap applies Normalize to every value of m.
func NormalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

func normalizeArray(a []any) any {
	strs := make([]string, 0, len(a))
	for _, e := range a {
		s, ok := e.(string)
		if !ok {
			out := make([]any, len(a))
			for i, e := range a {
				out[i] = Normalize(e)
			}
			return out
		}
		strs = append(strs, s)
	}
	return strs
}

// DecodeMap unmarshals raw into a normalized map.
func DecodeMap(raw bson.Raw) (map[string]any, error) {
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return NormalizeMap(m), nil
}
