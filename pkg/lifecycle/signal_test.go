//go:build !windows

package lifecycle

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_NotifySignals(t *testing.T) {
	t.Run("Terminate", func(t *testing.T) {
		r := newFakeRunner()
		var built atomic.Int32
		m := NewManager(withRunner(r, &built))
		stop := m.NotifySignals(context.Background())
		defer stop()

		result := startAsync(m)
		<-r.running

		require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
		require.NoError(t, waitResult(t, result))

		assert.True(t, m.Terminated())
		assert.Equal(t, syscall.SIGTERM, m.Signal())
		assert.Equal(t, int32(1), r.stops.Load())
	})

	t.Run("Stop", func(t *testing.T) {
		m := NewManager()
		stop := m.NotifySignals(context.Background())
		stop()

		time.Sleep(10 * time.Millisecond)
		assert.False(t, m.Terminated())
		assert.Nil(t, m.Signal())
	})
}
