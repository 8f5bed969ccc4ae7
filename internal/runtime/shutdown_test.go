package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHandlersRunInReverseOrder(t *testing.T) {
	m := NewShutdownManager(time.Second)

	var order []string
	m.Register("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	m.Register("second", func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	m.Shutdown()

	assert.Equal(t, []string{"second", "first"}, order)
}

func TestShutdownRunsOnce(t *testing.T) {
	m := NewShutdownManager(time.Second)

	count := 0
	m.Register("counter", func(ctx context.Context) error {
		count++
		return nil
	})

	m.Shutdown()
	m.Shutdown()

	assert.Equal(t, 1, count)
}

func TestShutdownBlocksUntilHandlersFinish(t *testing.T) {
	m := NewShutdownManager(time.Second)

	finished := false
	m.Register("slow", func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		finished = true
		return nil
	})

	m.Shutdown()

	assert.True(t, finished)
}

func TestHandlerErrorDoesNotStopOthers(t *testing.T) {
	m := NewShutdownManager(time.Second)

	ran := false
	m.Register("runs anyway", func(ctx context.Context) error {
		ran = true
		return nil
	})
	m.Register("fails", func(ctx context.Context) error {
		return errors.New("cleanup failed")
	})

	m.Shutdown()

	assert.True(t, ran)
}

func TestContextCancelledOnShutdown(t *testing.T) {
	m := NewShutdownManager(time.Second)

	m.Shutdown()

	select {
	case <-m.Context().Done():
	default:
		t.Fatal("shutdown context should be cancelled")
	}
}
