package rpc

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// String returns the string field key, or "" when absent.
func String(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

// Bool returns the bool field key, or false when absent.
func Bool(s *structpb.Struct, key string) bool {
	if s == nil {
		return false
	}
	return s.GetFields()[key].GetBoolValue()
}

// Int returns the integral number field key. Absent fields are 0.
func Int(s *structpb.Struct, key string) (int, error) {
	if s == nil {
		return 0, nil
	}
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("field %q: expected number", key)
	}
	f := n.NumberValue
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("field %q: %v is not a small integer", key, f)
	}
	return int(f), nil
}

// RequiredInt is Int for fields that must be present.
func RequiredInt(s *structpb.Struct, key string) (int, error) {
	if _, ok := s.GetFields()[key]; !ok {
		return 0, fmt.Errorf("field %q: missing", key)
	}
	return Int(s, key)
}

// List returns the list field key as Structs, skipping non-object items.
func List(s *structpb.Struct, key string) []*structpb.Struct {
	if s == nil {
		return nil
	}
	var out []*structpb.Struct
	for _, v := range s.GetFields()[key].GetListValue().GetValues() {
		if st := v.GetStructValue(); st != nil {
			out = append(out, st)
		}
	}
	return out
}

// Reply builds a response Struct from JSON-compatible values.
func Reply(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	return out, nil
}
