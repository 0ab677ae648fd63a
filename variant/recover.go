package variant

import (
	"github.com/flowkit/reactor/fanout"
	"github.com/flowkit/reactor/inputbuffer"
	"github.com/flowkit/reactor/transferstate"
)

// RecoverFunction receives a panic value recovered from a wrapped
// MapFunction and produces the replacement element, or reports it cannot
// recover by returning ok=false, in which case the element is dropped.
type RecoverFunction[R any] func(recovered any) (value R, ok bool)

// Recover wraps a MapFunction that may panic, converting a panic into
// either a replacement element (via RecoverFunction) or a dropped element,
// rather than letting it crash the actor goroutine. It exists because a
// user-supplied MapFunction is arbitrary code the actor does not control,
// and one bad element must not take the whole processor down with it.
type Recover[T, R any] struct {
	fn      MapFunction[T, R]
	recover RecoverFunction[R]
}

// NewRecover returns a Recover capability wrapping fn with recover.
func NewRecover[T, R any](fn MapFunction[T, R], recover RecoverFunction[R]) *Recover[T, R] {
	return &Recover[T, R]{fn: fn, recover: recover}
}

func (r *Recover[T, R]) InitialTransferState() transferstate.TransferState {
	return transferstate.New(true, false)
}

func (r *Recover[T, R]) Transfer(in inputbuffer.Source, out *fanout.OutputFanOut) transferstate.TransferState {
	element := in.Dequeue().(T)
	result, recovered, panicked := r.callSafely(element)
	if panicked {
		if value, ok := r.recover(recovered); ok {
			out.EnqueueOutputElement(value)
		}
		return transferstate.New(true, false)
	}
	out.EnqueueOutputElement(result)
	return transferstate.New(true, false)
}

func (r *Recover[T, R]) callSafely(element T) (result R, recovered any, panicked bool) {
	defer func() {
		if p := recover(); p != nil {
			panicked = true
			recovered = p
		}
	}()
	result = r.fn(element)
	return
}
