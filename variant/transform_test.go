package variant

import (
	"strings"
	"testing"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/fanout"
	"github.com/flowkit/reactor/inputbuffer"
	"github.com/flowkit/reactor/internal/assert"
)

type collectingSubscriber struct{ received []any }

func (c *collectingSubscriber) OnSubscribe(reactor.Subscription) {}
func (c *collectingSubscriber) OnNext(v any)                     { c.received = append(c.received, v) }
func (c *collectingSubscriber) OnComplete()                      {}
func (c *collectingSubscriber) OnError(error)                    {}

type noopSub struct{}

func (noopSub) Request(int64) {}
func (noopSub) Cancel()       {}

func newTestFanOut() (*fanout.OutputFanOut, *collectingSubscriber) {
	f := fanout.New(4, 16, func(reactor.SubscriptionID) reactor.Subscription { return noopSub{} })
	sub := &collectingSubscriber{}
	id := f.RegisterSubscriber(sub)
	f.MoreRequested(id, 100)
	return f, sub
}

func TestTransformUppercases(t *testing.T) {
	ib, _ := inputbuffer.NewInputBuffer(4, 4)
	ib.Enqueue("hello")
	out, sub := newTestFanOut()

	tr := NewTransform(strings.ToUpper)
	tr.Transfer(ib, out)

	assert.Equal(t, sub.received, []any{"HELLO"})
}

func TestFilterDropsNonMatching(t *testing.T) {
	ib, _ := inputbuffer.NewInputBuffer(4, 4)
	ib.Enqueue(1)
	ib.Enqueue(2)
	ib.Enqueue(3)
	out, sub := newTestFanOut()

	f := NewFilter(func(n int) bool { return n%2 == 0 })
	f.Transfer(ib, out)
	f.Transfer(ib, out)
	f.Transfer(ib, out)

	assert.Equal(t, sub.received, []any{2})
}

func TestGroupByTagsElements(t *testing.T) {
	ib, _ := inputbuffer.NewInputBuffer(4, 4)
	ib.Enqueue("apple")
	ib.Enqueue("banana")
	out, sub := newTestFanOut()

	g := NewGroupBy(func(s string) rune { return rune(s[0]) })
	g.Transfer(ib, out)
	g.Transfer(ib, out)

	assert.Equal(t, sub.received, []any{
		Keyed[rune, string]{Key: 'a', Value: "apple"},
		Keyed[rune, string]{Key: 'b', Value: "banana"},
	})
}
