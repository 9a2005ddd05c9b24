package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWaitReturnsAfterDuration(t *testing.T) {
	if err := Wait(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := Wait(context.Background(), 0); err != nil {
		t.Fatalf("zero duration must not error: %v", err)
	}
}

func TestWaitInterruptedByCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTickerLoopRunsOnStartAndStops(t *testing.T) {
	var ticks atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- TickerLoop(ctx, TickerConfig{
			Name:       "test",
			Interval:   time.Hour,
			RunOnStart: true,
			OnTick:     func(context.Context) { ticks.Add(1) },
		})
	}()

	deadline := time.After(time.Second)

	for ticks.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("OnTick never ran")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestTickerLoopSecondaryTick(t *testing.T) {
	var secondary atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = TickerLoop(ctx, TickerConfig{
			Name:              "test",
			Interval:          time.Hour,
			SecondaryInterval: 5 * time.Millisecond,
			OnSecondaryTick:   func(context.Context) { secondary.Add(1) },
		})
	}()

	deadline := time.After(time.Second)

	for secondary.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("secondary tick never fired")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRecoverPanic(t *testing.T) {
	logger := zerolog.Nop()

	func() {
		defer RecoverPanic(&logger, "test op")
		panic("boom")
	}()
}
