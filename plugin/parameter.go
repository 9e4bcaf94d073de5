package plugin

import (
	"fmt"
	"math"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-oscfx/dsp/core"
)

// Parameter is a ranged plain value stored atomically so the audio thread
// can read it without locking.
type Parameter struct {
	ID      string
	Name    string
	Min     float64
	Max     float64
	Default float64

	bits atomic.Uint64
}

// NewParameter returns a Parameter set to def. min and max are swapped if
// reversed; def is clamped into range.
func NewParameter(id, name string, min, max, def float64) *Parameter {
	if min > max {
		min, max = max, min
	}

	p := &Parameter{ID: id, Name: name, Min: min, Max: max}
	p.Default = p.clamp(def)
	p.Set(p.Default)

	return p
}

// Value returns the current plain value.
func (p *Parameter) Value() float64 {
	return math.Float64frombits(p.bits.Load())
}

// Set stores v clamped to [Min, Max]. NaN stores Min.
func (p *Parameter) Set(v float64) {
	p.bits.Store(math.Float64bits(p.clamp(v)))
}

// Normalized returns the value mapped to [0,1].
func (p *Parameter) Normalized() float64 {
	if p.Max <= p.Min {
		return 0
	}
	return (p.Value() - p.Min) / (p.Max - p.Min)
}

// SetNormalized stores the plain value for a normalized position.
func (p *Parameter) SetNormalized(n float64) {
	p.Set(core.MapUnit(core.ClampUnit(n), p.Min, p.Max))
}

// Reset restores the default value.
func (p *Parameter) Reset() { p.Set(p.Default) }

func (p *Parameter) clamp(v float64) float64 {
	return core.Clamp(v, p.Min, p.Max)
}

// ParameterSet is the ordered, fixed collection of an effect's parameters.
type ParameterSet struct {
	params []*Parameter
	byID   map[string]*Parameter
}

// NewParameterSet builds a set. Duplicate IDs after the first are ignored.
func NewParameterSet(params ...*Parameter) *ParameterSet {
	s := &ParameterSet{byID: make(map[string]*Parameter, len(params))}
	for _, p := range params {
		if p == nil {
			continue
		}
		if _, dup := s.byID[p.ID]; dup {
			continue
		}
		s.byID[p.ID] = p
		s.params = append(s.params, p)
	}
	return s
}

// Get returns the parameter with id, or nil.
func (s *ParameterSet) Get(id string) *Parameter {
	return s.byID[id]
}

// All returns the parameters in registration order.
func (s *ParameterSet) All() []*Parameter {
	return append([]*Parameter(nil), s.params...)
}

// Len returns the number of parameters.
func (s *ParameterSet) Len() int { return len(s.params) }

// Reset restores every parameter to its default.
func (s *ParameterSet) Reset() {
	for _, p := range s.params {
		p.Reset()
	}
}

// Values returns a snapshot of plain values keyed by ID.
func (s *ParameterSet) Values() map[string]float64 {
	out := make(map[string]float64, len(s.params))
	for _, p := range s.params {
		out[p.ID] = p.Value()
	}
	return out
}

// state is the persisted form of an effect's parameters.
type state struct {
	Effect string             `yaml:"effect"`
	Params map[string]float64 `yaml:"params"`
}

// SaveState serializes the parameters of e as YAML. Router stage state is
// not part of it.
func SaveState(e Effect) ([]byte, error) {
	data, err := yaml.Marshal(state{Effect: e.Name(), Params: e.Parameters().Values()})
	if err != nil {
		return nil, fmt.Errorf("plugin: encode state: %w", err)
	}
	return data, nil
}

// LoadState restores parameters saved by SaveState. Unknown IDs are
// ignored and values are clamped to each parameter's range.
func LoadState(e Effect, data []byte) error {
	var st state
	if err := yaml.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("plugin: decode state: %w", err)
	}

	if st.Effect != e.Name() {
		return fmt.Errorf("%w: state is for %q, effect is %q", ErrStateMismatch, st.Effect, e.Name())
	}

	params := e.Parameters()
	for id, v := range st.Params {
		if p := params.Get(id); p != nil {
			p.Set(v)
		}
	}

	return nil
}
