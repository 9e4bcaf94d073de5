package router

import "fmt"

// StageKind identifies one filter stage.
type StageKind int

// Stage kinds in processing order.
const (
	Lowpass StageKind = iota
	Highpass
	Bandpass
	Notch

	// NumStages is the number of stage kinds.
	NumStages
)

var stageNames = [NumStages]string{
	Lowpass:  "LPF",
	Highpass: "HPF",
	Bandpass: "BPF",
	Notch:    "NOTCH",
}

// String returns the wire name of the stage.
func (k StageKind) String() string {
	if k < 0 || k >= NumStages {
		return fmt.Sprintf("StageKind(%d)", int(k))
	}
	return stageNames[k]
}

// ParseStageKind maps a wire name to a StageKind. Matching is exact and
// case-sensitive.
func ParseStageKind(name string) (StageKind, bool) {
	for k, n := range stageNames {
		if n == name {
			return StageKind(k), true
		}
	}
	return 0, false
}

// StageNames returns the wire names in processing order.
func StageNames() []string {
	return append([]string(nil), stageNames[:]...)
}
