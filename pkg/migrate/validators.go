package migrate

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Validators for the YAML document shapes produced by decoding a stored
// record into map[string]any.

func String() func(any) error {
	return func(v any) error {
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		return nil
	}
}

func Bool() func(any) error {
	return func(v any) error {
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		return nil
	}
}

func UUID() func(any) error {
	return func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected uuid string, got %T", v)
		}
		if _, err := uuid.Parse(s); err != nil {
			return fmt.Errorf("invalid uuid %q: %w", s, err)
		}
		return nil
	}
}

func Time() func(any) error {
	return func(v any) error {
		switch t := v.(type) {
		case time.Time:
			return nil
		case string:
			if _, err := time.Parse(time.RFC3339, t); err != nil {
				return fmt.Errorf("invalid timestamp %q: %w", t, err)
			}
			return nil
		default:
			return fmt.Errorf("expected timestamp, got %T", v)
		}
	}
}

func IntRange(min, max int) func(any) error {
	return func(v any) error {
		i, ok := asInt(v)
		if !ok {
			return fmt.Errorf("expected integer, got %T", v)
		}
		if i < min || i > max {
			return fmt.Errorf("%d outside [%d, %d]", i, min, max)
		}
		return nil
	}
}

func List() func(any) error {
	return func(v any) error {
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("expected list, got %T", v)
		}
		return nil
	}
}

func Map() func(any) error {
	return func(v any) error {
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("expected mapping, got %T", v)
		}
		return nil
	}
}

func asInt(v any) (int, bool) {
	switch i := v.(type) {
	case int:
		return i, true
	case int64:
		return int(i), true
	case uint64:
		return int(i), true
	case float64:
		if i == float64(int(i)) {
			return int(i), true
		}
	}
	return 0, false
}
