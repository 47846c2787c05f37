package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, sub *Subscription, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	for len(out) < n {
		select {
		case e, ok := <-sub.Events():
			require.True(t, ok, "subscription closed after %d events, want %d", len(out), n)
			out = append(out, e)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d events, want %d", len(out), n)
		}
	}
	return out
}

func TestBroker_SequencesAreMonotonic(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()

	sub, err := b.Subscribe(Filter{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		b.Publish(Event{Kind: KindTransactionQueued})
	}

	got := drain(t, sub, 3)
	for i, e := range got {
		require.Equal(t, uint64(i+1), e.Sequence)
	}
}

func TestBroker_FilterSelectsEvents(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()

	sub, err := b.Subscribe(Filter{
		Kinds:  []Kind{KindBlockCommitted},
		Domain: "wonderland",
	})
	require.NoError(t, err)

	b.Publish(Event{Kind: KindTransactionQueued, Domain: "wonderland"})
	b.Publish(Event{Kind: KindBlockCommitted, Domain: "looking_glass"})
	b.Publish(Event{Kind: KindBlockCommitted, Domain: "wonderland", Height: 7})

	got := drain(t, sub, 1)
	require.Equal(t, KindBlockCommitted, got[0].Kind)
	require.Equal(t, uint64(7), got[0].Height)
	// The matching event keeps its global sequence number.
	require.Equal(t, uint64(3), got[0].Sequence)
}

func TestBroker_RejectsUnknownKind(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()

	_, err := b.Subscribe(Filter{Kinds: []Kind{"solar_flare"}})
	require.Error(t, err)
}

func TestBroker_DropsLaggingSubscriber(t *testing.T) {
	b := NewBroker(2)
	defer b.Close()

	sub, err := b.Subscribe(Filter{})
	require.NoError(t, err)

	// Fill the buffer and overflow it without the subscriber reading.
	for i := 0; i < 3; i++ {
		b.Publish(Event{Kind: KindTransactionQueued})
	}

	require.Equal(t, 0, b.SubscriberCount())

	// The buffered events are still readable, then the channel closes.
	drain(t, sub, 2)
	_, ok := <-sub.Events()
	require.False(t, ok)
}

func TestBroker_CloseTerminatesSubscribers(t *testing.T) {
	b := NewBroker(8)
	sub, err := b.Subscribe(Filter{})
	require.NoError(t, err)

	b.Close()
	_, ok := <-sub.Events()
	require.False(t, ok)

	// Publishing after close is a no-op, and new subscriptions come back
	// already terminated.
	b.Publish(Event{Kind: KindTransactionQueued})
	late, err := b.Subscribe(Filter{})
	require.NoError(t, err)
	_, ok = <-late.Events()
	require.False(t, ok)
}

func TestSubscription_CloseDetaches(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()

	sub, err := b.Subscribe(Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, b.SubscriberCount())

	sub.Close()
	require.Equal(t, 0, b.SubscriberCount())
}
