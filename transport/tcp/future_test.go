// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package tcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nio/api"
)

func TestFuture_FirstOutcomeWins(t *testing.T) {
	var completed, failed int
	f := newFuture[int](api.CompletionFuncs[int]{
		OnCompleted: func(int) { completed++ },
		OnFailed:    func(error) { failed++ },
	})
	assert.False(t, f.IsDone())
	_, ok := f.Result()
	assert.False(t, ok)

	assert.True(t, f.complete(7, nil))
	assert.False(t, f.fail(errors.New("late")))

	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, completed)
	assert.Zero(t, failed)
}

func TestFuture_HooksRunOnceEitherSide(t *testing.T) {
	f := newFuture[string](nil)
	var seen []string
	f.onComplete(func(v string, _ error) { seen = append(seen, "before:"+v) })
	f.complete("x", nil)
	f.onComplete(func(v string, _ error) { seen = append(seen, "after:"+v) })
	assert.Equal(t, []string{"before:x", "after:x"}, seen)
}

func TestFuture_Waiting(t *testing.T) {
	f := newFuture[int](nil)
	_, err := f.GetTimeout(10 * time.Millisecond)
	assert.ErrorIs(t, err, api.ErrOperationTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	go func() {
		time.Sleep(10 * time.Millisecond)
		f.fail(api.ErrConnectionClosed)
	}()
	_, err = f.GetTimeout(time.Second)
	assert.ErrorIs(t, err, api.ErrConnectionClosed)
}

func TestFuture_MarkForRecycle(t *testing.T) {
	pending := newFuture[*int](nil)
	pending.MarkForRecycle()
	assert.False(t, pending.IsDone())

	n := 3
	f := completedFuture(&n, nil, nil)
	f.MarkForRecycle()
	r, ok := f.Result()
	require.True(t, ok)
	assert.Nil(t, r.Value)
	assert.NoError(t, r.Err)
}
