// pkg/converter/values.go
package converter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// IsNull determines if a value should be treated as the missing marker
func (c *TypeConverter) IsNull(value interface{}) bool {
	if value == nil {
		return true
	}

	switch v := value.(type) {
	case string:
		return isNullString(v, c.config.EmptyStringAsNull)
	case float64:
		return math.IsNaN(v)
	case float32:
		return math.IsNaN(float64(v))
	case primitive.Null, primitive.Undefined:
		return true
	}

	return false
}

func isNullString(s string, emptyIsNull bool) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return emptyIsNull
	}
	switch trimmed {
	case "null", "NULL", "nil", "NIL", "NaN", "nan", "None", "NaT":
		return true
	}
	return false
}

// ToText renders a value as display text. ObjectIDs become their hex form,
// integral floats drop the fraction, times use RFC3339.
func (c *TypeConverter) ToText(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return dateTimeToTime(v).Format(time.RFC3339)
	case primitive.Decimal128:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return formatFloat(float64(v))
	case float64:
		return formatFloat(v)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// DigitsToInt keeps only the decimal digits of the value's text form and
// parses them. ok is false when no digit survives or the digits overflow
// int64, in which case the result is 0.
func (c *TypeConverter) DigitsToInt(value interface{}) (int64, bool) {
	if c.IsNull(value) {
		return 0, false
	}

	text := c.ToText(value)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if digits == "" {
		return 0, false
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		c.logger.Debug("Identifier digits overflow int64",
			zap.String("digits", digits),
			zap.Error(err))
		return 0, false
	}
	return n, true
}

// ToFloat converts a value to float64. Null inputs return ErrNullValue.
func (c *TypeConverter) ToFloat(value interface{}) (float64, error) {
	if c.IsNull(value) {
		return 0, ErrNullValue
	}

	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case primitive.Decimal128:
		return strconv.ParseFloat(v.String(), 64)
	case string:
		cleaned := strings.TrimSpace(v)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string '%s' to numeric: %w", cleaned, err)
		}
		return f, nil
	case []byte:
		return c.ToFloat(string(v))
	default:
		return 0, fmt.Errorf("cannot convert %T to numeric", value)
	}
}

// ToTime converts a value to a UTC timestamp. Null inputs return ErrNullValue,
// anything that cannot be read as a point in time returns a parse error.
func (c *TypeConverter) ToTime(value interface{}) (time.Time, error) {
	if c.IsNull(value) {
		return time.Time{}, ErrNullValue
	}

	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, ErrNullValue
		}
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, ErrNullValue
		}
		return c.ToTime(*v)
	case primitive.DateTime:
		return dateTimeToTime(v), nil
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0).UTC(), nil
	case string:
		return c.parseTimeString(strings.TrimSpace(v))
	case []byte:
		return c.parseTimeString(strings.TrimSpace(string(v)))
	case int, int32, int64, float32, float64:
		if !c.config.NumericTimestamps {
			return time.Time{}, fmt.Errorf("numeric value %v not accepted as timestamp", v)
		}
		f, err := c.ToFloat(v)
		if err != nil {
			return time.Time{}, err
		}
		if math.IsInf(f, 0) {
			return time.Time{}, fmt.Errorf("cannot convert %v to timestamp", v)
		}
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), nil
	default:
		c.logger.Debug("Unsupported timestamp value type",
			zap.String("type", fmt.Sprintf("%T", value)))
		return time.Time{}, fmt.Errorf("cannot convert %T to timestamp", value)
	}
}

func (c *TypeConverter) parseTimeString(s string) (time.Time, error) {
	if format := DetectTimeFormat(s); format != "" {
		if t, err := time.ParseInLocation(format, s, c.loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse '%s' as timestamp", s)
}

// dateTimeToTime converts BSON milliseconds since epoch into a UTC time
func dateTimeToTime(dt primitive.DateTime) time.Time {
	ms := int64(dt)
	return time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond)).UTC()
}
