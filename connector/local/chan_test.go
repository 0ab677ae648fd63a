package local

import (
	"testing"
	"time"

	"github.com/flowkit/reactor/internal/assert"
)

func TestChanSourceToChanSinkRoundTrip(t *testing.T) {
	in := make(chan any, 4)
	in <- "a"
	in <- "b"
	close(in)

	source := NewChanSource(in)
	sink := NewChanSink(source, 4)

	var got []any
	timeout := time.After(time.Second)
	for i := 0; i < 2; i++ {
		select {
		case v := <-sink.Out():
			got = append(got, v)
		case <-timeout:
			t.Fatal("timed out waiting for elements")
		}
	}
	assert.Equal(t, got, []any{"a", "b"})
}
