package docstore

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Notifier 集合级变更通知
type Notifier interface {
	// Notify 通知集合发生了写入
	Notify(ctx context.Context, collection string)
	// Watch 返回集合变更信号，ctx 取消后注销
	Watch(ctx context.Context, collection string) <-chan struct{}
}

// LocalNotifier 进程内通知
type LocalNotifier struct {
	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

// NewLocalNotifier 创建进程内通知器
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{watchers: make(map[string]map[chan struct{}]struct{})}
}

// Notify 向集合的所有观察者发送信号，观察者尚未消费时合并
func (n *LocalNotifier) Notify(_ context.Context, collection string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch 注册观察者
func (n *LocalNotifier) Watch(ctx context.Context, collection string) <-chan struct{} {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.watchers[collection] == nil {
		n.watchers[collection] = make(map[chan struct{}]struct{})
	}
	n.watchers[collection][ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.watchers[collection], ch)
		if len(n.watchers[collection]) == 0 {
			delete(n.watchers, collection)
		}
		n.mu.Unlock()
	}()

	return ch
}

// PubSub 跨实例广播通道（pkg/redis.Client 实现了该接口）
type PubSub interface {
	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) (<-chan string, error)
}

// BroadcastNotifier 通过 PubSub 广播变更，使多个实例的订阅都能收到彼此的写入
type BroadcastNotifier struct {
	local   *LocalNotifier
	ps      PubSub
	channel string
	logger  *zap.Logger
}

// NewBroadcastNotifier 订阅广播频道并把收到的集合名转发给本地观察者
func NewBroadcastNotifier(ctx context.Context, ps PubSub, channel string, logger *zap.Logger) (*BroadcastNotifier, error) {
	msgs, err := ps.Subscribe(ctx, channel)
	if err != nil {
		return nil, err
	}

	n := &BroadcastNotifier{
		local:   NewLocalNotifier(),
		ps:      ps,
		channel: channel,
		logger:  logger,
	}

	go func() {
		for collection := range msgs {
			n.local.Notify(ctx, collection)
		}
	}()

	return n, nil
}

// Notify 发布变更；发布失败时至少通知本实例
func (n *BroadcastNotifier) Notify(ctx context.Context, collection string) {
	if err := n.ps.Publish(ctx, n.channel, collection); err != nil {
		n.logger.Warn("广播文档变更失败，仅通知本实例",
			zap.String("collection", collection), zap.Error(err))
		n.local.Notify(ctx, collection)
	}
}

// Watch 注册本地观察者
func (n *BroadcastNotifier) Watch(ctx context.Context, collection string) <-chan struct{} {
	return n.local.Watch(ctx, collection)
}
