package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_RunsInReverseOrder(t *testing.T) {
	m := New(time.Second, zap.NewNop())

	var order []string
	m.Add("db", func(context.Context) error { order = append(order, "db"); return nil })
	m.Add("workers", func(context.Context) error { order = append(order, "workers"); return errors.New("boom") })
	m.Add("http", func(context.Context) error { order = append(order, "http"); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Wait(ctx)

	assert.Equal(t, []string{"http", "workers", "db"}, order)

	// A second shutdown has nothing left to run.
	m.Shutdown()
	assert.Len(t, order, 3)
}

func TestWaitDone(t *testing.T) {
	done := make(chan struct{})
	close(done)
	require.NoError(t, WaitDone(done)(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, WaitDone(make(chan struct{}))(ctx), context.DeadlineExceeded)
}
