package rtkctx

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/go-rtkernel"
	"github.com/stretchr/testify/assert"
)

func TestTicksNoDeadlineIsForever(t *testing.T) {
	assert.Equal(t, rtkernel.Forever, Ticks(context.Background(), time.Millisecond))
}

func TestTicksRoundsUpToWholePeriods(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	assert.Equal(t, rtkernel.Ticks(3), Ticks(ctx, 10*time.Millisecond))
}

func TestTicksPastDeadlinePolls(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	assert.Equal(t, rtkernel.Ticks(0), Ticks(ctx, time.Millisecond))
}

func TestWaitReturnsCallResultWhenFaster(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := Wait(ctx, time.Millisecond, func(timeout rtkernel.Ticks) (string, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestWaitReturnsContextErrorOnEarlyCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := Wait(ctx, time.Millisecond, func(timeout rtkernel.Ticks) (string, error) {
		<-release
		return "late", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
