package eventbus

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/clientdesk/pkg/logging"
)

type args struct {
	data any
}

type otherArgs struct{}

func bufferedLogger(level logrus.Level) (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(level)
	return log, buf
}

func TestPublisher_Publish_NoMatch(t *testing.T) {
	log, buf := bufferedLogger(logrus.DebugLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *args) {
		t.Error("should not be called")
	})

	publisher.Publish(&otherArgs{})

	assert.Contains(t, buf.String(), "eventbus.Publish: no matching subscribers")
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	var got any
	publisher.Subscribe(func(e *args) {
		got = e.data
	})

	publisher.Publish(&args{data: "test"})

	assert.Equal(t, "test", got)
}

func TestPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher(nil)
	calls := 0
	handler := func(e *args) { calls++ }
	first := publisher.Subscribe(handler)
	publisher.Subscribe(handler)
	require.Equal(t, 2, publisher.SubscribersCount())

	first()
	first()
	require.Equal(t, 1, publisher.SubscribersCount())

	publisher.Publish(&args{})
	assert.Equal(t, 1, calls)

	publisher.Clear()
	assert.Equal(t, 0, publisher.SubscribersCount())
}

func TestMatchSignature(t *testing.T) {
	assert.True(t, MatchSignature(func(e *args) {}, []any{&args{}}))
	assert.False(t, MatchSignature(func(e *args) {}, []any{&otherArgs{}}))
	assert.False(t, MatchSignature(func(e *args) {}, []any{}))
	assert.False(t, MatchSignature(func(e *args) {}, []any{&args{}, &args{}}))
	assert.True(t, MatchSignature(func(ctx context.Context) {}, []any{context.Background()}))
	assert.True(t, MatchSignature(func(e *args) {}, []any{nil}))
	assert.False(t, MatchSignature("not a func", []any{}))
}

func TestPublisher_PanicRecovery(t *testing.T) {
	t.Parallel()

	t.Run("handler panic is caught and logged", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.ErrorLevel)
		publisher := NewEventPublisher(log)
		publisher.Subscribe(func(e *args) {
			panic("intentional panic for testing")
		})

		require.NotPanics(t, func() { publisher.Publish(&args{data: "test"}) })
		assert.Contains(t, buf.String(), "panicked")
		assert.Contains(t, buf.String(), "intentional panic for testing")
	})

	t.Run("other handlers still run", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		called1, called2 := false, false
		publisher.Subscribe(func(e *args) { called1 = true })
		publisher.Subscribe(func(e *args) { panic("handler 2 panic") })
		publisher.Subscribe(func(e *args) { called2 = true })

		publisher.Publish(&args{})

		assert.True(t, called1)
		assert.True(t, called2)
	})
}

func TestPublisher_PublishE(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrNoSubscribers when none match", func(t *testing.T) {
		publisher := NewEventPublisher(logrus.New())
		require.ErrorIs(t, publisher.PublishE(&args{data: "x"}), ErrNoSubscribers)
	})

	t.Run("returns joined errors from multiple handlers", func(t *testing.T) {
		publisher := NewEventPublisher(logrus.New())
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		publisher.Subscribe(func(e *args) error { return err1 })
		publisher.Subscribe(func(e *args) error { return err2 })

		err := publisher.PublishE(&args{data: "x"})
		require.ErrorIs(t, err, err1)
		require.ErrorIs(t, err, err2)
	})

	t.Run("panic is surfaced as error", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		called := false
		publisher.Subscribe(func(e *args) error { panic("boom") })
		publisher.Subscribe(func(e *args) error { called = true; return nil })

		require.Error(t, publisher.PublishE(&args{data: "x"}))
		assert.True(t, called)
	})

	t.Run("invalid handler return", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		publisher.Subscribe(func(e *args) int { return 1 })
		require.ErrorIs(t, publisher.PublishE(&args{data: "x"}), ErrInvalidHandlerReturn)
	})
}

func TestPublisher_ConcurrentSubscribeAndPublish(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cancel := publisher.Subscribe(func(e *args) {})
			cancel()
		}()
		go func() {
			defer wg.Done()
			publisher.Publish(&args{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, publisher.SubscribersCount())
}
