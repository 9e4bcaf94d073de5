package plugin

// Result labels reported to an Observer for each control message.
const (
	ResultApplied  = "applied"
	ResultRejected = "rejected"
	ResultIgnored  = "ignored"
	ResultDropped  = "dropped"
)

// Observer receives control-path events. Implementations must be safe for
// concurrent use; they are never called from Process.
type Observer interface {
	// MessageHandled reports how a message on address was handled.
	MessageHandled(effect, address, result string)
	// ActiveStagesChanged reports the filter's active stage count after a
	// mutation.
	ActiveStagesChanged(n int)
}

type nopObserver struct{}

func (nopObserver) MessageHandled(string, string, string) {}
func (nopObserver) ActiveStagesChanged(int)               {}
