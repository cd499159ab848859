package reportapi

import (
	"fmt"
	"strconv"
	"time"

	"foodwaste/pkg/domain"
)

// FormatValue renders a normalized row value as display text. NULL renders
// empty; floats use the shortest exact decimal form.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.UTC().Format(domain.TimestampLayout)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
