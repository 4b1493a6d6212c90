package docstore

import (
	"context"

	"go.uber.org/zap"
)

type queryFunc func(ctx context.Context) ([]*Snapshot, error)

// watchQuery 基于 Notifier 的通用订阅实现：
// 先注册观察再做首次查询，避免两者之间的写入被漏掉。
func watchQuery(ctx context.Context, n Notifier, collection string, query queryFunc, logger *zap.Logger) (<-chan []*Snapshot, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	changes := n.Watch(watchCtx, collection)

	initial, err := query(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan []*Snapshot, 1)
	out <- initial

	go func() {
		defer cancel()
		defer close(out)

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-changes:
				snaps, err := query(watchCtx)
				if err != nil {
					if watchCtx.Err() != nil {
						return
					}
					logger.Warn("订阅重新查询失败", zap.String("collection", collection), zap.Error(err))
					continue
				}
				sendLatest(out, snaps)
			}
		}
	}()

	return out, nil
}

// sendLatest 非阻塞发送：若上一次结果尚未被消费则替换为最新结果
func sendLatest(out chan []*Snapshot, snaps []*Snapshot) {
	for {
		select {
		case out <- snaps:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}
