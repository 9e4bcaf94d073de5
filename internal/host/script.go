package host

import (
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Event is one scheduled control message. At is in seconds from the start
// of the render.
type Event struct {
	At      float64 `yaml:"at"`
	Address string  `yaml:"address"`
	Args    []any   `yaml:"args"`
}

// Script is an ordered list of control events.
//
//	events:
//	  - at: 0.5
//	    address: /filter/active
//	    args: [LPF, 1]
type Script struct {
	Events []Event `yaml:"events"`
}

// ParseScript decodes a YAML script. YAML integers become int32 and floats
// become float32 so the events carry OSC-typed arguments. Events are sorted
// by time; events at the same time keep file order.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("host: parse script: %w", err)
	}

	for i := range s.Events {
		ev := &s.Events[i]
		if ev.At < 0 || math.IsNaN(ev.At) || math.IsInf(ev.At, 0) {
			return nil, fmt.Errorf("host: event %d: invalid time %v", i, ev.At)
		}
		if !strings.HasPrefix(ev.Address, "/") {
			return nil, fmt.Errorf("host: event %d: address %q must start with /", i, ev.Address)
		}
		for j, arg := range ev.Args {
			v, err := oscArg(arg)
			if err != nil {
				return nil, fmt.Errorf("host: event %d arg %d: %w", i, j, err)
			}
			ev.Args[j] = v
		}
	}

	slices.SortStableFunc(s.Events, func(a, b Event) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		}
		return 0
	})

	return &s, nil
}

// LoadScript reads and parses a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}
	return ParseScript(data)
}

func oscArg(v any) (any, error) {
	switch x := v.(type) {
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return nil, fmt.Errorf("integer %d overflows int32", x)
		}
		return int32(x), nil
	case float64:
		return float32(x), nil
	case string, bool:
		return x, nil
	}
	return nil, fmt.Errorf("unsupported argument type %T", v)
}
