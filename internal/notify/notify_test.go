package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/types"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

func TestCenterPublishAndRecent(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()
	c := NewCenter()

	if got := c.Recent(); len(got) != 0 {
		t.Errorf("expected empty history, got %d entries", len(got))
	}

	c.Publish(ctx, types.LevelSuccess, "task completed")
	c.Publish(ctx, types.LevelError, "upload failed")

	got := c.Recent()
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if got[0].Level != types.LevelSuccess || got[0].Text != "task completed" {
		t.Errorf("unexpected first notification: %+v", got[0])
	}
	if got[1].Level != types.LevelError || got[1].Text != "upload failed" {
		t.Errorf("unexpected second notification: %+v", got[1])
	}
	if got[0].At.IsZero() {
		t.Error("notification timestamp not set")
	}
}

func TestCenterHistoryBound(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()
	c := NewCenter(WithHistorySize(3))

	for i := 1; i <= 5; i++ {
		c.Publish(ctx, types.LevelInfo, fmt.Sprintf("notice %d", i))
	}

	got := c.Recent()
	if len(got) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(got))
	}
	for i, want := range []string{"notice 3", "notice 4", "notice 5"} {
		if got[i].Text != want {
			t.Errorf("history[%d] = %q, want %q", i, got[i].Text, want)
		}
	}
}

func TestCenterSubscribe(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()
	c := NewCenter()

	ch, cancel := c.Subscribe()
	defer cancel()

	c.Publish(ctx, types.LevelWarning, "session expiring")

	n := <-ch
	if n.Level != types.LevelWarning || n.Text != "session expiring" {
		t.Errorf("unexpected notification: %+v", n)
	}

	cancel()
	c.Publish(ctx, types.LevelInfo, "after cancel")

	// The canceled channel is closed and drained of nothing new.
	if n, ok := <-ch; ok {
		t.Errorf("received %+v after cancel", n)
	}
}

func TestCenterSlowSubscriber(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()
	c := NewCenter(WithSubscriberBuffer(2))

	ch, cancel := c.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		c.Publish(ctx, types.LevelInfo, fmt.Sprintf("notice %d", i))
	}

	received := 0
drain:
	for {
		select {
		case <-ch:
			received++
		default:
			break drain
		}
	}
	if received != 2 {
		t.Errorf("expected overflow dropped at buffer size 2, received %d", received)
	}

	// History keeps what the subscriber lost.
	if got := c.Recent(); len(got) != 5 {
		t.Errorf("expected full history of 5, got %d", len(got))
	}
}

func TestCenterClose(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()
	c := NewCenter()

	ch, cancel := c.Subscribe()
	defer cancel()

	c.Close()
	c.Close()

	if _, ok := <-ch; ok {
		t.Error("subscriber channel left open after close")
	}

	c.Publish(ctx, types.LevelInfo, "after close")
	if got := c.Recent(); len(got) != 0 {
		t.Errorf("publish after close recorded %d entries", len(got))
	}

	// Subscribing after close yields a closed channel.
	late, lateCancel := c.Subscribe()
	defer lateCancel()
	if _, ok := <-late; ok {
		t.Error("late subscriber channel left open")
	}
}

func TestCenterConcurrentPublish(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()
	c := NewCenter(WithHistorySize(1000))

	ch, cancel := c.Subscribe()
	defer cancel()
	go func() {
		for range ch {
		}
	}()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Publish(ctx, types.LevelInfo, fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	if got := c.Recent(); len(got) != 1000 {
		t.Errorf("expected 1000 retained notifications, got %d", len(got))
	}
}
