package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRow 文档表，对应 documents（collection + id 复合主键，data 为 JSONB）
type DocumentRow struct {
	Collection string         `gorm:"type:varchar(64);primaryKey"`
	ID         string         `gorm:"type:varchar(191);primaryKey"`
	Data       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName 指定表名
func (DocumentRow) TableName() string { return "documents" }

// PostgresStore 基于 PostgreSQL JSONB 的文档存储
type PostgresStore struct {
	db       *gorm.DB
	notifier Notifier
	logger   *zap.Logger
}

// NewPostgresStore 创建 PostgreSQL 文档存储，表结构由 database.RunMigrations 维护
func NewPostgresStore(db *gorm.DB, notifier Notifier, logger *zap.Logger) *PostgresStore {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	return &PostgresStore{db: db, notifier: notifier, logger: logger}
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	return pgOps{db: s.db.WithContext(ctx)}.get(collection, id)
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, data interface{}) error {
	if err := (pgOps{db: s.db.WithContext(ctx)}).set(collection, id, data); err != nil {
		return err
	}
	s.notifier.Notify(ctx, collection)
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return pgOps{db: tx, lock: true}.update(collection, id, fields)
	})
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, collection)
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if err := (pgOps{db: s.db.WithContext(ctx)}).delete(collection, id); err != nil {
		return err
	}
	s.notifier.Notify(ctx, collection)
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filters ...Filter) ([]*Snapshot, error) {
	db := s.db.WithContext(ctx).Where("collection = ?", collection)
	for _, f := range filters {
		frag, err := filterFragment(f)
		if err != nil {
			return nil, err
		}
		db = db.Where("data @> ?::jsonb", frag)
	}

	var rows []DocumentRow
	if err := db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*Snapshot, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].snapshot())
	}
	return out, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, collection string, filters ...Filter) (<-chan []*Snapshot, error) {
	return watchQuery(ctx, s.notifier, collection, func(ctx context.Context) ([]*Snapshot, error) {
		return s.Query(ctx, collection, filters...)
	}, s.logger)
}

func (s *PostgresStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	touched := make(map[string]bool)
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&pgTx{ops: pgOps{db: db, lock: true}, touched: touched})
	})
	if err != nil {
		return err
	}
	for collection := range touched {
		s.notifier.Notify(ctx, collection)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *DocumentRow) snapshot() *Snapshot {
	return &Snapshot{ID: r.ID, Data: json.RawMessage(r.Data), UpdatedAt: r.UpdatedAt}
}

// pgOps 单条文档操作，lock=true 时读取加行锁（SELECT ... FOR UPDATE）
type pgOps struct {
	db   *gorm.DB
	lock bool
}

func (o pgOps) get(collection, id string) (*Snapshot, error) {
	db := o.db
	if o.lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row DocumentRow
	err := db.Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.snapshot(), nil
}

func (o pgOps) set(collection, id string, data interface{}) error {
	raw, err := encodeDocument(data)
	if err != nil {
		return err
	}
	now := time.Now()
	row := DocumentRow{
		Collection: collection,
		ID:         id,
		Data:       datatypes.JSON(raw),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return o.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
}

func (o pgOps) update(collection, id string, fields map[string]interface{}) error {
	cur, err := o.get(collection, id)
	if err != nil {
		return err
	}
	merged, err := mergeFields(cur.Data, fields)
	if err != nil {
		return err
	}
	return o.db.Model(&DocumentRow{}).
		Where("collection = ? AND id = ?", collection, id).
		Updates(map[string]interface{}{
			"data":       datatypes.JSON(merged),
			"updated_at": time.Now(),
		}).Error
}

func (o pgOps) delete(collection, id string) error {
	return o.db.Where("collection = ? AND id = ?", collection, id).Delete(&DocumentRow{}).Error
}

type pgTx struct {
	ops     pgOps
	touched map[string]bool
}

func (t *pgTx) Get(_ context.Context, collection, id string) (*Snapshot, error) {
	return t.ops.get(collection, id)
}

func (t *pgTx) Set(_ context.Context, collection, id string, data interface{}) error {
	t.touched[collection] = true
	return t.ops.set(collection, id, data)
}

func (t *pgTx) Update(_ context.Context, collection, id string, fields map[string]interface{}) error {
	t.touched[collection] = true
	return t.ops.update(collection, id, fields)
}

func (t *pgTx) Delete(_ context.Context, collection, id string) error {
	t.touched[collection] = true
	return t.ops.delete(collection, id)
}
