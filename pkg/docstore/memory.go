package docstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memDoc struct {
	data      json.RawMessage
	updatedAt time.Time
}

// MemoryStore 进程内文档存储，用于本地开发与测试
type MemoryStore struct {
	mu          sync.RWMutex
	writeMu     sync.Mutex // 串行化写入与事务
	collections map[string]map[string]memDoc
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

// NewMemoryStore 创建进程内文档存储；notifier 为 nil 时使用进程内通知
func NewMemoryStore(notifier Notifier, logger *zap.Logger) *MemoryStore {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		collections: make(map[string]map[string]memDoc),
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(collection, id)
}

func (s *MemoryStore) getLocked(collection, id string) (*Snapshot, error) {
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Snapshot{ID: id, Data: doc.data, UpdatedAt: doc.updatedAt}, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data interface{}) error {
	raw, err := encodeDocument(data)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	s.apply(map[docKey]*json.RawMessage{{collection, id}: &raw})
	s.writeMu.Unlock()

	s.notifier.Notify(ctx, collection)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	s.writeMu.Lock()
	s.mu.RLock()
	cur, err := s.getLocked(collection, id)
	s.mu.RUnlock()
	if err != nil {
		s.writeMu.Unlock()
		return err
	}
	merged, err := mergeFields(cur.Data, fields)
	if err != nil {
		s.writeMu.Unlock()
		return err
	}
	s.apply(map[docKey]*json.RawMessage{{collection, id}: &merged})
	s.writeMu.Unlock()

	s.notifier.Notify(ctx, collection)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.writeMu.Lock()
	s.apply(map[docKey]*json.RawMessage{{collection, id}: nil})
	s.writeMu.Unlock()

	s.notifier.Notify(ctx, collection)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, collection string, filters ...Filter) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Snapshot, 0)
	for id, doc := range s.collections[collection] {
		ok, err := matchFilters(doc.data, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, &Snapshot{ID: id, Data: doc.data, UpdatedAt: doc.updatedAt})
		}
	}
	sortSnapshots(out)
	return out, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string, filters ...Filter) (<-chan []*Snapshot, error) {
	return watchQuery(ctx, s.notifier, collection, func(ctx context.Context) ([]*Snapshot, error) {
		return s.Query(ctx, collection, filters...)
	}, s.logger)
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{store: s, staged: make(map[docKey]*json.RawMessage)}
	if err := s.commit(tx, fn); err != nil {
		return err
	}

	notified := make(map[string]bool)
	for k := range tx.staged {
		if !notified[k.collection] {
			notified[k.collection] = true
			s.notifier.Notify(ctx, k.collection)
		}
	}
	return nil
}

// commit 持有写锁执行 fn 并提交；fn panic 时同样释放写锁
func (s *MemoryStore) commit(tx *memTx, fn func(tx Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}
	s.apply(tx.staged)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

type docKey struct {
	collection string
	id         string
}

// apply 原子地提交一组写入，nil 表示删除
func (s *MemoryStore) apply(writes map[docKey]*json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, raw := range writes {
		if raw == nil {
			delete(s.collections[k.collection], k.id)
			continue
		}
		if s.collections[k.collection] == nil {
			s.collections[k.collection] = make(map[string]memDoc)
		}
		s.collections[k.collection][k.id] = memDoc{data: *raw, updatedAt: now}
	}
}

// memTx 暂存事务内的写入，读取时优先看到本事务的写入
type memTx struct {
	store  *MemoryStore
	staged map[docKey]*json.RawMessage
}

func (t *memTx) Get(_ context.Context, collection, id string) (*Snapshot, error) {
	if raw, ok := t.staged[docKey{collection, id}]; ok {
		if raw == nil {
			return nil, ErrNotFound
		}
		return &Snapshot{ID: id, Data: *raw, UpdatedAt: t.store.now()}, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.getLocked(collection, id)
}

func (t *memTx) Set(_ context.Context, collection, id string, data interface{}) error {
	raw, err := encodeDocument(data)
	if err != nil {
		return err
	}
	t.staged[docKey{collection, id}] = &raw
	return nil
}

func (t *memTx) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	cur, err := t.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	merged, err := mergeFields(cur.Data, fields)
	if err != nil {
		return err
	}
	t.staged[docKey{collection, id}] = &merged
	return nil
}

func (t *memTx) Delete(_ context.Context, collection, id string) error {
	t.staged[docKey{collection, id}] = nil
	return nil
}
