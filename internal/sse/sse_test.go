package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func drain(ch <-chan string) []string {
	var out []string
	for msg := range ch {
		out = append(out, msg)
	}
	return out
}

func TestPublishFansOutAndCloseEndsStream(t *testing.T) {
	h := NewHub(8)
	h.Open("run")
	h.Open("other")
	_, a, cancelA := h.Subscribe("run")
	defer cancelA()
	_, b, cancelB := h.Subscribe("run")
	defer cancelB()

	h.Publish("run", "one")
	h.Publish("run", "two")
	h.Publish("other", "x")
	h.Close("run")

	assert.Equal(t, []string{"one", "two"}, drain(a))
	assert.Equal(t, []string{"one", "two"}, drain(b))
}

func TestLateSubscriberGetsBacklog(t *testing.T) {
	h := NewHub(8)
	h.Open("run")
	h.Publish("run", "start")
	h.Publish("run", "iter")
	h.Close("run")
	h.Publish("run", "ignored")

	backlog, ch, cancel := h.Subscribe("run")
	defer cancel()

	assert.Equal(t, []string{"start", "iter"}, backlog)
	assert.Empty(t, drain(ch))
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(1)
	h.Open("run")
	_, ch, cancel := h.Subscribe("run")
	defer cancel()

	h.Publish("run", "a")
	h.Publish("run", "b")
	h.Close("run")

	assert.Equal(t, []string{"a"}, drain(ch))
}

func TestCancelUnsubscribes(t *testing.T) {
	h := NewHub(8)
	h.Open("run")
	_, ch, cancel := h.Subscribe("run")
	cancel()
	cancel()

	h.Publish("run", "a")
	_, ok := <-ch
	assert.False(t, ok)
}

func TestUnknownTopicIsNotCreated(t *testing.T) {
	h := NewHub(8)
	h.Publish("ghost", "a")
	h.Close("ghost")

	backlog, ch, cancel := h.Subscribe("ghost")
	defer cancel()

	assert.Empty(t, backlog)
	assert.Empty(t, drain(ch))
	assert.Equal(t, 0, h.Len())
}

func TestForgetDropsHistoryAndSubscribers(t *testing.T) {
	h := NewHub(8)
	h.Open("run")
	_, ch, cancel := h.Subscribe("run")
	h.Publish("run", "one")

	h.Forget("run")
	cancel()

	assert.Equal(t, []string{"one"}, drain(ch))
	assert.Equal(t, 0, h.Len())

	backlog, _, cancel2 := h.Subscribe("run")
	defer cancel2()
	assert.Empty(t, backlog)
}
