package vectorstore

import (
	"fmt"
	"math"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/protobuf/encoding/protojson"
)

// toValueMap converts a payload into qdrant values.
func toValueMap(payload map[string]any) (map[string]*qdrant.Value, error) {
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		val, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("payload field %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func toValue(v any) (*qdrant.Value, error) {
	switch val := v.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}, nil
	case *string:
		if val == nil {
			return toValue(nil)
		}
		return toValue(*val)
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}, nil
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}, nil
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}, nil
	case int32:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}, nil
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}, nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}, nil
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(val)}}, nil
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}, nil
	case map[string]any:
		fields, err := toValueMap(val)
		if err != nil {
			return nil, err
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}, nil
	case []any:
		values := make([]*qdrant.Value, 0, len(val))
		for i, item := range val {
			iv, err := toValue(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			values = append(values, iv)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", v)
	}
}

// fromValueMap converts qdrant values back into plain Go values:
// nil, string, bool, int64, float64, map[string]any and []any.
func fromValueMap(m map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_StructValue:
		return fromValueMap(kind.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = fromValue(item)
		}
		return out
	default:
		return nil
	}
}

// marshalPayload serializes a payload keeping integer and double kinds apart.
func marshalPayload(payload map[string]any) (string, error) {
	fields, err := toValueMap(payload)
	if err != nil {
		return "", err
	}
	data, err := protojson.Marshal(&qdrant.Struct{Fields: fields})
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	return string(data), nil
}

func unmarshalPayload(data string) (map[string]any, error) {
	var s qdrant.Struct
	if err := protojson.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return fromValueMap(s.GetFields()), nil
}

// matchKey renders a scalar as a typed string so keyword "1" and integer 1
// stay distinguishable in string-only metadata.
func matchKey(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return "s:" + val, true
	case *string:
		if val == nil {
			return "", false
		}
		return "s:" + *val, true
	case bool:
		return "b:" + strconv.FormatBool(val), true
	case int:
		return "i:" + strconv.FormatInt(int64(val), 10), true
	case int32:
		return "i:" + strconv.FormatInt(int64(val), 10), true
	case int64:
		return "i:" + strconv.FormatInt(val, 10), true
	case uint64:
		return "i:" + strconv.FormatUint(val, 10), true
	case float32:
		return "f:" + strconv.FormatFloat(float64(val), 'g', -1, 32), true
	case float64:
		return "f:" + strconv.FormatFloat(val, 'g', -1, 64), true
	default:
		return "", false
	}
}

// scalarMetadata mirrors the top-level scalar payload fields as typed strings.
func scalarMetadata(payload map[string]any) map[string]string {
	md := make(map[string]string, len(payload))
	for k, v := range payload {
		if key, ok := matchKey(v); ok {
			md[k] = key
		}
	}
	return md
}
