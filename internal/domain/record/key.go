package record

import (
	"fmt"
	"strings"
	"time"
)

// ValueKey returns a comparable key for a canonical field value, used to detect
// duplicate values of unique fields within a batch.
func ValueKey(v any) string {
	switch x := v.(type) {
	case time.Time:
		return fmt.Sprintf("time:%d", x.UnixNano())
	case []string:
		return "list:" + strings.Join(x, "\x1f")
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

// Duplicate is a value of a unique field stored by more than one record.
type Duplicate struct {
	Value any
	Count int64
}
