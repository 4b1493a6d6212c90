package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakePubSub 进程内模拟 Redis 发布订阅
type fakePubSub struct {
	subs       []chan string
	publishErr error
}

func (f *fakePubSub) Publish(_ context.Context, _ string, payload string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	for _, ch := range f.subs {
		ch <- payload
	}
	return nil
}

func (f *fakePubSub) Subscribe(_ context.Context, _ string) (<-chan string, error) {
	ch := make(chan string, 8)
	f.subs = append(f.subs, ch)
	return ch, nil
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("未收到变更信号")
	}
}

func TestLocalNotifier_CoalescesSignals(t *testing.T) {
	n := NewLocalNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := n.Watch(ctx, "items")
	n.Notify(ctx, "items")
	n.Notify(ctx, "items")
	n.Notify(ctx, "other")

	waitSignal(t, ch)
	select {
	case <-ch:
		t.Error("连续通知应被合并为一次")
	default:
	}
}

func TestBroadcastNotifier_FansOutAcrossInstances(t *testing.T) {
	ps := &fakePubSub{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := NewBroadcastNotifier(ctx, ps, "docs", zap.NewNop())
	if err != nil {
		t.Fatalf("创建通知器失败: %v", err)
	}
	b, _ := NewBroadcastNotifier(ctx, ps, "docs", zap.NewNop())

	watchB := b.Watch(ctx, "enrollments")
	a.Notify(ctx, "enrollments")

	waitSignal(t, watchB)
}

func TestBroadcastNotifier_PublishFailureFallsBackLocal(t *testing.T) {
	ps := &fakePubSub{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, _ := NewBroadcastNotifier(ctx, ps, "docs", zap.NewNop())
	ps.publishErr = errors.New("redis down")

	ch := n.Watch(ctx, "items")
	n.Notify(ctx, "items")

	waitSignal(t, ch)
}
