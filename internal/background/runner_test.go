package background

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dgellow/line-relay/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestRunner_DetachesCancellation(t *testing.T) {
	r := NewRunner()

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	release := make(chan struct{})
	var sawErr error
	var sawValue any

	r.Go(ctx, "detached", func(ctx context.Context) error {
		<-release
		sawErr = ctx.Err()
		sawValue = ctx.Value(ctxKey{})
		return nil
	})

	cancel()
	close(release)
	require.NoError(t, r.Wait())
	assert.NoError(t, sawErr, "request cancellation must not reach the task")
	assert.Equal(t, "v", sawValue)
}

func TestRunner_ReportsErrorsAndPanics(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(nil) })

	r := NewRunner()
	var ran atomic.Int32

	r.Go(context.Background(), "ok", func(context.Context) error {
		ran.Add(1)
		return nil
	})
	r.Go(context.Background(), "fails", func(context.Context) error {
		ran.Add(1)
		return errors.New("boom")
	})
	r.Go(context.Background(), "panics", func(context.Context) error {
		ran.Add(1)
		panic("kaboom")
	})

	err := r.Wait()
	require.Error(t, err)
	assert.Equal(t, int32(3), ran.Load())
	assert.Contains(t, buf.String(), "async NG")
	assert.Contains(t, buf.String(), "kaboom")
	assert.Contains(t, buf.String(), "boom")
}
