package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestJobRunnerRunsSubmitted(t *testing.T) {
	runner := NewJobRunner()
	done := make(chan struct{})

	if ok := runner.Submit("test", func() { close(done) }); !ok {
		t.Fatal("submit rejected before shutdown")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("submitted task never ran")
	}
}

func TestJobRunnerSequentialWithinBatch(t *testing.T) {
	runner := NewJobRunner()
	var order []int
	done := make(chan struct{})

	runner.Submit("batch", func() {
		for i := 0; i < 5; i++ {
			order = append(order, i)
		}
		close(done)
	})

	<-done
	for i, v := range order {
		if v != i {
			t.Fatalf("batch ran out of order: %v", order)
		}
	}
}

func TestJobRunnerRecoversFromPanic(t *testing.T) {
	runner := NewJobRunner()
	var ran atomic.Bool
	first := make(chan struct{})

	runner.Submit("panics", func() {
		defer close(first)
		panic("boom")
	})
	<-first

	done := make(chan struct{})
	runner.Submit("after", func() {
		ran.Store(true)
		close(done)
	})
	<-done

	if !ran.Load() {
		t.Fatal("runner unusable after a panicking task")
	}
}

func TestJobRunnerRejectsAfterShutdown(t *testing.T) {
	runner := NewJobRunner()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	runner.Shutdown(ctx)

	if ok := runner.Submit("late", func() {}); ok {
		t.Fatal("submit accepted after shutdown")
	}
}

func TestJobRunnerShutdownWaitsForRunning(t *testing.T) {
	runner := NewJobRunner()
	var finished atomic.Bool

	started := make(chan struct{})
	runner.Submit("slow", func() {
		close(started)
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runner.Shutdown(ctx)

	if !finished.Load() {
		t.Fatal("shutdown did not wait for the running task")
	}
}
