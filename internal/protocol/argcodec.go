package protocol

import (
	"fmt"

	"github.com/louisbranch/boardframe/internal/engine/board"
	"github.com/louisbranch/boardframe/internal/engine/move"
)

// elementKey tags a board element reference inside serialized arguments.
const elementKey = "$element"

// EncodeArgs serializes committed move arguments for the wire. Board
// element references are tagged so the host can resolve them against its
// own element tree; everything else passes through as JSON values.
func EncodeArgs(args move.Args) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for name, value := range args {
		encoded, err := encodeValue(value)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		out[name] = encoded
	}
	return out, nil
}

func encodeValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, bool, string, int, int64, float64:
		return v, nil
	case board.ElementID:
		return map[string]any{elementKey: string(v)}, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			encoded, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = encoded
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if k == elementKey {
				return nil, fmt.Errorf("reserved key %q in argument map", elementKey)
			}
			encoded, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = encoded
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported argument value type %T", value)
	}
}

// DecodeArgs reverses EncodeArgs, restoring board element references.
func DecodeArgs(wire map[string]any) (move.Args, error) {
	args := make(move.Args, len(wire))
	for name, value := range wire {
		decoded, err := decodeValue(value)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		args[name] = decoded
	}
	return args, nil
}

func decodeValue(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		if ref, ok := v[elementKey]; ok {
			id, isString := ref.(string)
			if !isString || len(v) != 1 {
				return nil, fmt.Errorf("malformed element reference %v", v)
			}
			return board.ElementID(id), nil
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			decoded, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = decoded
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			decoded, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = decoded
		}
		return out, nil
	default:
		return v, nil
	}
}
