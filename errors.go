package reactor

import "errors"

// Sentinel errors for the processor protocol, in the style of the teacher's
// errors.New("writer is nil") (extension/sink_writer.go) and
// errors.New("at least one operator supplier is required") (flow/keyed.go).
var (
	// ErrProtocolViolation is returned when a signal arrives out of the
	// order the reactive-streams protocol or the actor's own lifecycle
	// permits: a first signal other than ExposedPublisher, a second
	// OnSubscribe, onNext before onSubscribe, or a new subscription
	// arriving while Flushing.
	ErrProtocolViolation = errors.New("reactor: protocol violation")

	// ErrNonPositiveDemand is returned when a subscriber calls
	// Subscription.Request with n <= 0.
	ErrNonPositiveDemand = errors.New("reactor: request(n) requires n > 0")

	// ErrAlreadyShutDown names an operation attempted after a processor has
	// reached the ShutDown state. Nothing in this module returns it: a
	// subscriber arriving after shutdown is handed the processor's own
	// terminal signal instead.
	ErrAlreadyShutDown = errors.New("reactor: processor already shut down")

	// ErrAbruptTermination names a processor stopping without a graceful
	// shutdown path. Nothing in this module reports it: the processor has no
	// stop path other than fail and the graceful shutdown, and fail reports
	// the failure's own cause.
	ErrAbruptTermination = errors.New("reactor: processor terminated abruptly")
)

// Check panics if the given error is not nil. Reserved for programmer-error
// invariant violations at construction time, matching the teacher's
// streams.Check / util.Check; never used on errors that can originate from
// signal processing.
func Check(e error) {
	if e != nil {
		panic(e)
	}
}
