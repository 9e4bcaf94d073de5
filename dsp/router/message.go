package router

import (
	"errors"
	"fmt"
)

// OSC addresses understood by Decode.
const (
	AddressActive = "/filter/active"
	AddressCutoff = "/filter/cutoff"
)

// Decode errors. They only describe why a message was dropped; callers
// never forward them to the control peer.
var (
	ErrUnknownAddress = errors.New("router: unknown address")
	ErrArity          = errors.New("router: wrong argument count")
	ErrArgType        = errors.New("router: wrong argument type")
	ErrUnknownStage   = errors.New("router: unknown stage name")
)

// ControlMessage is one decoded stage mutation: SetActive or SetCutoff.
type ControlMessage interface {
	// StageName returns the stage name carried by the message.
	StageName() string

	controlMessage()
}

// SetActive enables or disables the named stage.
type SetActive struct {
	Stage   string
	Enabled bool
}

// SetCutoff sets the stored cutoff of the named stage.
type SetCutoff struct {
	Stage string
	Hz    float64
}

func (m SetActive) StageName() string { return m.Stage }
func (m SetCutoff) StageName() string { return m.Stage }

func (SetActive) controlMessage() {}
func (SetCutoff) controlMessage() {}

// Decode turns an OSC address and its typed arguments into a ControlMessage.
//
//	/filter/active  (string name, int32 enabled)
//	/filter/cutoff  (string name, float32 hz)
func Decode(address string, args []any) (ControlMessage, error) {
	switch address {
	case AddressActive:
		name, err := stageArgs(address, args)
		if err != nil {
			return nil, err
		}
		enabled, ok := args[1].(int32)
		if !ok {
			return nil, fmt.Errorf("%w: %s arg 1 is %T, want int32", ErrArgType, address, args[1])
		}
		return SetActive{Stage: name, Enabled: enabled != 0}, nil

	case AddressCutoff:
		name, err := stageArgs(address, args)
		if err != nil {
			return nil, err
		}
		hz, ok := args[1].(float32)
		if !ok {
			return nil, fmt.Errorf("%w: %s arg 1 is %T, want float32", ErrArgType, address, args[1])
		}
		return SetCutoff{Stage: name, Hz: float64(hz)}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAddress, address)
	}
}

func stageArgs(address string, args []any) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: %s got %d, want 2", ErrArity, address, len(args))
	}
	name, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s arg 0 is %T, want string", ErrArgType, address, args[0])
	}
	if _, ok := ParseStageKind(name); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	return name, nil
}
