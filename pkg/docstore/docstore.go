// Package docstore 定义通用文档存储客户端。
//
// 文档以 JSON 对象形式保存在 collection/id 之下，支持：
//   - 按 id 读取 / 覆盖写入 / 字段合并更新 / 删除
//   - 顶层字段等值查询
//   - 实时订阅：查询结果变化时推送最新快照集合
//   - 事务性读-改-写
//
// 提供 memory（进程内）、postgres（JSONB 表）与 mongo 三种实现。
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "learnhub/pkg/errors"
)

// ErrNotFound 文档不存在
var ErrNotFound = fmt.Errorf("%w: 文档不存在", apperrors.ErrNotFound)

// ErrInvalidDocument 写入的数据不是 JSON 对象
var ErrInvalidDocument = fmt.Errorf("文档必须是 JSON 对象")

// Filter 顶层字段等值查询条件（值按 JSON 语义比较，仅用于标量字段）
type Filter struct {
	Field string
	Value interface{}
}

// Eq 构造等值条件
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// deleteField 删除字段标记
type deleteField struct{}

// DeleteField 作为 Update 的字段值时表示删除该顶层字段
var DeleteField interface{} = deleteField{}

// Snapshot 某一时刻的文档内容
type Snapshot struct {
	ID        string
	Data      json.RawMessage
	UpdatedAt time.Time
}

// DataTo 将文档内容解码到 v
func (s *Snapshot) DataTo(v interface{}) error {
	return json.Unmarshal(s.Data, v)
}

// Fields 以通用 map 形式返回文档内容
func (s *Snapshot) Fields() (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(s.Data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Reader 按 id 读取
type Reader interface {
	// Get 读取文档，不存在时返回 ErrNotFound
	Get(ctx context.Context, collection, id string) (*Snapshot, error)
}

// Writer 按 id 写入
type Writer interface {
	// Set 覆盖写入（不存在则创建）
	Set(ctx context.Context, collection, id string, data interface{}) error
	// Update 合并更新顶层字段，文档不存在时返回 ErrNotFound
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	// Delete 删除文档，不存在时不报错
	Delete(ctx context.Context, collection, id string) error
}

// Tx 事务内可用的操作
type Tx interface {
	Reader
	Writer
}

// Store 文档存储客户端
type Store interface {
	Tx

	// Query 返回满足全部等值条件的文档，按 id 升序
	Query(ctx context.Context, collection string, filters ...Filter) ([]*Snapshot, error)

	// Subscribe 先推送当前查询结果，之后每次集合变化推送最新结果；
	// ctx 取消后 channel 关闭。消费过慢时只保留最新一次结果。
	Subscribe(ctx context.Context, collection string, filters ...Filter) (<-chan []*Snapshot, error)

	// RunTransaction 在事务中执行 fn，fn 返回错误时回滚。
	// fn 内只能通过 tx 访问存储。
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}
