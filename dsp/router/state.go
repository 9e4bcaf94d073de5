package router

const (
	// DefaultCutoffHz is the initial cutoff of every stage.
	DefaultCutoffHz = 1000.0

	// MaxActiveStages is the maximum number of simultaneously active stages.
	MaxActiveStages = 2
)

// StageState is an immutable snapshot of which stages are active and their
// stored cutoffs. Cutoffs are kept exactly as received.
//
// Activations counts inactive-to-active transitions per stage, so the audio
// thread can detect a stage that was switched off and on again between two
// blocks.
type StageState struct {
	Active      [NumStages]bool
	CutoffHz    [NumStages]float64
	Activations [NumStages]uint64
}

// DefaultStageState returns the state a router starts with: nothing active,
// every cutoff at DefaultCutoffHz.
func DefaultStageState() StageState {
	var s StageState
	for k := range s.CutoffHz {
		s.CutoffHz[k] = DefaultCutoffHz
	}
	return s
}

// ActiveCount returns the number of active stages.
func (s StageState) ActiveCount() int {
	n := 0
	for _, a := range s.Active {
		if a {
			n++
		}
	}
	return n
}

// ActiveStages returns the active stages in processing order.
func (s StageState) ActiveStages() []StageKind {
	var out []StageKind
	for k, a := range s.Active {
		if a {
			out = append(out, StageKind(k))
		}
	}
	return out
}
