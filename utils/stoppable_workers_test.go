package utils

import (
	"context"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestStoppableWorkersWait(t *testing.T) {
	var count atomic.Int32
	sw := NewStoppableWorkers(context.Background(),
		func(context.Context) { count.Add(1) },
		func(context.Context) { count.Add(2) },
	)
	sw.AddWorkers(func(context.Context) { count.Add(4) })
	sw.Wait()
	test.That(t, count.Load(), test.ShouldEqual, int32(7))
	test.That(t, sw.Context().Err(), test.ShouldBeNil)
	sw.Stop()
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)
}

func TestStoppableWorkersStop(t *testing.T) {
	started := make(chan struct{})
	var stopped atomic.Bool
	sw := NewStoppableWorkers(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		stopped.Store(true)
	})
	<-started
	sw.Stop()
	test.That(t, stopped.Load(), test.ShouldBeTrue)

	// nothing starts after Stop
	var ran atomic.Bool
	sw.AddWorkers(func(context.Context) { ran.Store(true) })
	sw.Wait()
	test.That(t, ran.Load(), test.ShouldBeFalse)
}

func TestStoppableWorkersParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sw := NewStoppableWorkers(ctx, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	cancel()
	<-done
	sw.Wait()
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)
}
