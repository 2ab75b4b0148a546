package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayClean/product-importer/internal/domain/model"
)

// stubWaiter blocks until fired or the wait context expires, mirroring the
// LISTEN/NOTIFY wait the repository performs.
type stubWaiter struct {
	fire chan struct{}
}

func newStubWaiter() *stubWaiter {
	return &stubWaiter{fire: make(chan struct{})}
}

func (w *stubWaiter) WaitForNotification(ctx context.Context, _ model.JobType) error {
	select {
	case <-w.fire:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestNewNotifier_RequiresWaiter(t *testing.T) {
	_, err := NewNotifier(NotifierOptions{})
	assert.ErrorIs(t, err, ErrWaiterRequired)
}

func TestNotifier_SubscribeReceivesBroadcast(t *testing.T) {
	waiter := newStubWaiter()
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.JobTypeImport)
	defer unsub()

	waiter.fire <- struct{}{}

	select {
	case _, ok := <-ch:
		assert.True(t, ok, "expected a notification, not a closed channel")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestNotifier_BroadcastReachesAllSubscribers(t *testing.T) {
	waiter := newStubWaiter()
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsubA, chA := notifier.Subscribe(model.JobTypeImport)
	defer unsubA()
	unsubB, chB := notifier.Subscribe(model.JobTypeImport)
	defer unsubB()

	waiter.fire <- struct{}{}

	for _, ch := range []<-chan struct{}{chA, chB} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for notification")
		}
	}
}

func TestNotifier_UnsubscribeClosesChannel(t *testing.T) {
	waiter := newStubWaiter()
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.JobTypeImport)
	unsub()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Idempotent: a second call must not panic or double-close.
	unsub()
}

func TestNotifier_StopAllClosesSubscribers(t *testing.T) {
	waiter := newStubWaiter()
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)

	_, chA := notifier.Subscribe(model.JobTypeImport)
	_, chB := notifier.Subscribe(model.JobTypeWebhookDispatch)

	notifier.StopAll()

	_, okA := <-chA
	_, okB := <-chB
	assert.False(t, okA)
	assert.False(t, okB)
}
