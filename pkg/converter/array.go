// pkg/converter/array.go
package converter

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ToCellValue prepares a value for a flat output such as a spreadsheet cell.
// Scalars keep their type, times are formatted, nested arrays and documents
// are rendered as JSON text.
func (c *TypeConverter) ToCellValue(value interface{}) interface{} {
	if c.IsNull(value) {
		return ""
	}

	switch v := value.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case primitive.ObjectID, primitive.DateTime, primitive.Decimal128:
		return c.ToText(v)
	case primitive.A, primitive.D, primitive.M, []interface{}, map[string]interface{}:
		text, err := c.NestedToJSON(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return text
	default:
		return c.ToText(v)
	}
}

// NestedToJSON renders arrays and embedded documents as JSON text.
// Ordered BSON documents keep their key order.
func (c *TypeConverter) NestedToJSON(value interface{}) (string, error) {
	jsonBytes, err := json.Marshal(c.plain(value))
	if err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// plain rewrites BSON container types into values encoding/json understands
func (c *TypeConverter) plain(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.D:
		out := make(orderedDoc, 0, len(v))
		for _, e := range v {
			out = append(out, primitive.E{Key: e.Key, Value: c.plain(e.Value)})
		}
		return out
	case primitive.M:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = c.plain(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = c.plain(item)
		}
		return out
	case primitive.A:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = c.plain(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = c.plain(item)
		}
		return out
	case primitive.ObjectID, primitive.DateTime, primitive.Decimal128, time.Time:
		return c.ToText(v)
	default:
		return v
	}
}

// orderedDoc marshals as a JSON object preserving element order
type orderedDoc []primitive.E

func (d orderedDoc) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, e := range d {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}
