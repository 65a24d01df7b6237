package repository

import (
	"context"
	"time"

	"nexus/pkg/conn"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheEntry is a row of the cache snapshot table.
type CacheEntry struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     []byte
	UpdatedAt time.Time
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}

// Postgres stores snapshots as rows keyed by name.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres migrates the cache table and returns the repository.
func NewPostgres(client *conn.Postgres) (*Postgres, error) {
	if err := client.Migrate(&CacheEntry{}); err != nil {
		return nil, errors.Wrap(err, "migrate cache entries")
	}
	return &Postgres{db: client.DB()}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry CacheEntry
	err := p.db.WithContext(ctx).Where("key = ?", key).Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "query cache entry").With("key", key)
	}
	return entry.Value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	entry := CacheEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return errors.Wrap(err, "upsert cache entry").With("key", key)
	}
	return nil
}
