package oscio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hypebeast/go-osc/osc"
)

// Handler receives one decoded OSC message. It is called from the server's
// read goroutine and must not block for long.
type Handler func(address string, args []any)

// ErrEmptyPacket is returned by DecodePacket for a zero-length datagram.
var ErrEmptyPacket = errors.New("oscio: empty packet")

// ErrNotOSC is returned by DecodePacket for data that is neither a message
// nor a bundle.
var ErrNotOSC = errors.New("oscio: not an OSC message or bundle")

// DecodePacket parses a raw OSC message or bundle.
func DecodePacket(data []byte) (osc.Packet, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPacket
	}

	pkt, err := osc.ParsePacket(string(data))
	if err != nil {
		return nil, fmt.Errorf("oscio: parse packet: %w", err)
	}
	if pkt == nil {
		return nil, ErrNotOSC
	}

	return pkt, nil
}

// Dispatch delivers every message in pkt to h, descending into nested
// bundles in order. Bundle time tags are ignored: messages are delivered
// immediately. It returns the number of messages delivered.
func Dispatch(pkt osc.Packet, h Handler) int {
	switch p := pkt.(type) {
	case *osc.Message:
		if p == nil {
			return 0
		}
		h(p.Address, p.Arguments)
		return 1

	case *osc.Bundle:
		if p == nil {
			return 0
		}
		n := 0
		for _, m := range p.Messages {
			n += Dispatch(m, h)
		}
		for _, b := range p.Bundles {
			n += Dispatch(b, h)
		}
		return n
	}

	return 0
}

// HandleBytes decodes data and dispatches it to h.
func HandleBytes(data []byte, h Handler) (int, error) {
	pkt, err := DecodePacket(data)
	if err != nil {
		return 0, err
	}
	return Dispatch(pkt, h), nil
}

// ParseArgs converts command-line words to OSC arguments: integers become
// int32, other numbers float32, everything else stays a string. A prefix of
// "i:", "f:" or "s:" forces the type.
func ParseArgs(words []string) ([]any, error) {
	args := make([]any, 0, len(words))
	for _, w := range words {
		if typed, ok, err := parseTyped(w); ok {
			if err != nil {
				return nil, err
			}
			args = append(args, typed)
			continue
		}
		if i, err := strconv.ParseInt(w, 10, 32); err == nil {
			args = append(args, int32(i))
			continue
		}
		if strings.ContainsAny(w, ".eE") || strings.EqualFold(w, "nan") || strings.HasSuffix(strings.ToLower(w), "inf") {
			if f, err := strconv.ParseFloat(w, 32); err == nil {
				args = append(args, float32(f))
				continue
			}
		}
		args = append(args, w)
	}
	return args, nil
}

func parseTyped(w string) (any, bool, error) {
	prefix, rest, found := strings.Cut(w, ":")
	if !found {
		return nil, false, nil
	}

	switch prefix {
	case "i":
		i, err := strconv.ParseInt(rest, 10, 32)
		if err != nil {
			return nil, true, fmt.Errorf("oscio: %q is not an int32: %w", rest, err)
		}
		return int32(i), true, nil
	case "f":
		f, err := strconv.ParseFloat(rest, 32)
		if err != nil {
			return nil, true, fmt.Errorf("oscio: %q is not a float32: %w", rest, err)
		}
		return float32(f), true, nil
	case "s":
		return rest, true, nil
	}

	return nil, false, nil
}
