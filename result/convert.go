package result

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dan-strohschein/remotedb/query"
)

// Converter coerces column values into the types the typed getters return.
type Converter struct{}

// ToString converts any value to a string.
func (Converter) ToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case query.Char:
		return string(rune(v))
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToInt64 converts a value to an int64.
func (Converter) ToInt64(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, fmt.Errorf("cannot convert nil to int")
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case query.Char:
		return int64(v), nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert '%s' to int: %w", v, err)
		}
		return i, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

func uintToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("value %d overflows int64", v)
	}
	return int64(v), nil
}

// ToFloat64 converts a value to a float64.
func (c Converter) ToFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, fmt.Errorf("cannot convert nil to float")
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case uint64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert '%s' to float: %w", v, err)
		}
		return f, nil
	default:
		i, err := c.ToInt64(value)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %T to float", value)
		}
		return float64(i), nil
	}
}

// ToBool converts a value to a bool. Nil is false.
func (c Converter) ToBool(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		switch v {
		case "true", "True", "TRUE", "1", "yes", "y", "on":
			return true, nil
		case "false", "False", "FALSE", "0", "no", "n", "off", "":
			return false, nil
		default:
			return false, fmt.Errorf("cannot convert '%s' to boolean", v)
		}
	case float32, float64:
		f, _ := c.ToFloat64(v)
		return f != 0, nil
	default:
		i, err := c.ToInt64(value)
		if err != nil {
			return false, fmt.Errorf("cannot convert %T to boolean", value)
		}
		return i != 0, nil
	}
}

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ToTime converts a value to a time.Time. Integers are Unix seconds.
func (c Converter) ToTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("cannot convert nil to datetime")
	case time.Time:
		return v, nil
	case string:
		for _, format := range timeFormats {
			if t, err := time.Parse(format, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse '%s' as datetime", v)
	default:
		i, err := c.ToInt64(value)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot convert %T to datetime", value)
		}
		return time.Unix(i, 0), nil
	}
}

// ToBytes converts a value to a byte slice.
func (Converter) ToBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to bytes", value)
	}
}
