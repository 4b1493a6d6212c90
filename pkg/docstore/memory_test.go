package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "learnhub/pkg/errors"
)

type testDoc struct {
	Name   string   `json:"name"`
	Count  int      `json:"count"`
	Tags   []string `json:"tags,omitempty"`
	Active bool     `json:"active"`
}

func newTestStore() *MemoryStore {
	return NewMemoryStore(nil, nil)
}

func TestMemoryStore_SetGet(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	if err := s.Set(ctx, "items", "a", testDoc{Name: "alpha", Count: 1}); err != nil {
		t.Fatalf("Set 失败: %v", err)
	}

	snap, err := s.Get(ctx, "items", "a")
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	var got testDoc
	if err := snap.DataTo(&got); err != nil {
		t.Fatalf("DataTo 失败: %v", err)
	}
	if got.Name != "alpha" || got.Count != 1 {
		t.Errorf("读取内容不符: %+v", got)
	}
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	s := newTestStore()

	_, err := s.Get(context.Background(), "items", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("期望 ErrNotFound，实际: %v", err)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Error("ErrNotFound 应归类为通用 not found")
	}
}

func TestMemoryStore_SetRejectsNonObject(t *testing.T) {
	s := newTestStore()
	if err := s.Set(context.Background(), "items", "a", []int{1, 2}); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("期望 ErrInvalidDocument，实际: %v", err)
	}
}

func TestMemoryStore_UpdateMergesAndDeletes(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Set(ctx, "items", "a", map[string]interface{}{"name": "alpha", "legacy": "x", "count": 1})

	err := s.Update(ctx, "items", "a", map[string]interface{}{
		"count":  5,
		"legacy": DeleteField,
	})
	if err != nil {
		t.Fatalf("Update 失败: %v", err)
	}

	snap, _ := s.Get(ctx, "items", "a")
	fields, _ := snap.Fields()
	if fields["name"] != "alpha" {
		t.Errorf("未更新字段应保留，实际: %v", fields["name"])
	}
	if fields["count"] != float64(5) {
		t.Errorf("期望 count=5，实际: %v", fields["count"])
	}
	if _, ok := fields["legacy"]; ok {
		t.Error("legacy 字段应被删除")
	}
}

func TestMemoryStore_UpdateNotFound(t *testing.T) {
	s := newTestStore()
	err := s.Update(context.Background(), "items", "missing", map[string]interface{}{"count": 1})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("期望 ErrNotFound，实际: %v", err)
	}
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Set(ctx, "items", "a", testDoc{Name: "alpha"})

	if err := s.Delete(ctx, "items", "a"); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	if err := s.Delete(ctx, "items", "a"); err != nil {
		t.Fatalf("重复 Delete 不应报错: %v", err)
	}
	if _, err := s.Get(ctx, "items", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("删除后期望 ErrNotFound，实际: %v", err)
	}
}

func TestMemoryStore_QueryEquality(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Set(ctx, "items", "c", testDoc{Name: "gamma", Count: 2, Active: true})
	s.Set(ctx, "items", "a", testDoc{Name: "alpha", Count: 2, Active: true})
	s.Set(ctx, "items", "b", testDoc{Name: "beta", Count: 3, Active: true})
	s.Set(ctx, "items", "d", testDoc{Name: "delta", Count: 2, Active: false})

	snaps, err := s.Query(ctx, "items", Eq("count", 2), Eq("active", true))
	if err != nil {
		t.Fatalf("Query 失败: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("期望 2 条结果，实际 %d", len(snaps))
	}
	if snaps[0].ID != "a" || snaps[1].ID != "c" {
		t.Errorf("结果应按 id 升序，实际 %s,%s", snaps[0].ID, snaps[1].ID)
	}

	all, _ := s.Query(ctx, "items")
	if len(all) != 4 {
		t.Errorf("无条件查询期望 4 条，实际 %d", len(all))
	}
}

func TestMemoryStore_TransactionCommit(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Set(ctx, "counters", "likes", map[string]int{"value": 1})

	err := s.RunTransaction(ctx, func(tx Tx) error {
		snap, err := tx.Get(ctx, "counters", "likes")
		if err != nil {
			return err
		}
		var c struct{ Value int }
		snap.DataTo(&c)
		if err := tx.Update(ctx, "counters", "likes", map[string]interface{}{"value": c.Value + 1}); err != nil {
			return err
		}
		// 事务内能读到自己的写入
		again, err := tx.Get(ctx, "counters", "likes")
		if err != nil {
			return err
		}
		again.DataTo(&c)
		if c.Value != 2 {
			t.Errorf("事务内期望读到 2，实际 %d", c.Value)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTransaction 失败: %v", err)
	}

	snap, _ := s.Get(ctx, "counters", "likes")
	var c struct{ Value int }
	snap.DataTo(&c)
	if c.Value != 2 {
		t.Errorf("提交后期望 2，实际 %d", c.Value)
	}
}

func TestMemoryStore_TransactionRollback(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Set(ctx, "counters", "likes", map[string]int{"value": 1})

	boom := errors.New("boom")
	err := s.RunTransaction(ctx, func(tx Tx) error {
		tx.Update(ctx, "counters", "likes", map[string]interface{}{"value": 100})
		tx.Delete(ctx, "counters", "other")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("期望返回 fn 的错误，实际: %v", err)
	}

	snap, _ := s.Get(ctx, "counters", "likes")
	var c struct{ Value int }
	snap.DataTo(&c)
	if c.Value != 1 {
		t.Errorf("回滚后期望 1，实际 %d", c.Value)
	}
}

func TestMemoryStore_TransactionPanicReleasesLock(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("期望 panic 向上传递")
			}
		}()
		_ = s.RunTransaction(ctx, func(tx Tx) error {
			_ = tx.Set(ctx, "docs", "a", testDoc{Name: "staged"})
			panic("boom")
		})
	}()

	done := make(chan error, 1)
	go func() {
		done <- s.RunTransaction(ctx, func(tx Tx) error {
			return tx.Set(ctx, "docs", "b", testDoc{Name: "after"})
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("后续事务失败: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("panic 后写锁未释放，后续事务阻塞")
	}

	if _, err := s.Get(ctx, "docs", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("panic 的事务不应提交，实际: %v", err)
	}
	if err := s.Set(ctx, "docs", "c", testDoc{Name: "plain"}); err != nil {
		t.Errorf("panic 后普通写入失败: %v", err)
	}
}

func TestMemoryStore_ConcurrentTransactionsIncrement(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Set(ctx, "counters", "n", map[string]int{"value": 0})

	const workers = 20
	done := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			done <- s.RunTransaction(ctx, func(tx Tx) error {
				snap, err := tx.Get(ctx, "counters", "n")
				if err != nil {
					return err
				}
				var c struct{ Value int }
				snap.DataTo(&c)
				return tx.Update(ctx, "counters", "n", map[string]interface{}{"value": c.Value + 1})
			})
		}()
	}
	for i := 0; i < workers; i++ {
		if err := <-done; err != nil {
			t.Fatalf("事务失败: %v", err)
		}
	}

	snap, _ := s.Get(ctx, "counters", "n")
	var c struct{ Value int }
	snap.DataTo(&c)
	if c.Value != workers {
		t.Errorf("期望 %d，实际 %d", workers, c.Value)
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	s := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Set(ctx, "items", "a", testDoc{Name: "alpha", Count: 1})

	ch, err := s.Subscribe(ctx, "items", Eq("count", 1))
	if err != nil {
		t.Fatalf("Subscribe 失败: %v", err)
	}

	first := receive(t, ch)
	if len(first) != 1 {
		t.Fatalf("初始快照期望 1 条，实际 %d", len(first))
	}

	s.Set(ctx, "items", "b", testDoc{Name: "beta", Count: 1})

	next := receive(t, ch)
	if len(next) != 2 {
		t.Fatalf("写入后期望 2 条，实际 %d", len(next))
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			// 可能还有一次缓冲结果，再读一次确认关闭
			if _, ok := <-ch; ok {
				t.Error("取消后 channel 应关闭")
			}
		}
	case <-time.After(time.Second):
		t.Error("取消后 channel 未关闭")
	}
}

func receive(t *testing.T, ch <-chan []*Snapshot) []*Snapshot {
	t.Helper()
	select {
	case snaps, ok := <-ch:
		if !ok {
			t.Fatal("channel 已关闭")
		}
		return snaps
	case <-time.After(time.Second):
		t.Fatal("等待快照超时")
	}
	return nil
}
