package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"supamon-backend/internal/models"
)

// GormBackend stores sealed blobs in the secret_records table.
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend migrates secret_records and returns a backend over db.
func NewGormBackend(db *gorm.DB) (*GormBackend, error) {
	if db == nil {
		return nil, errors.New("gorm backend requires a database")
	}
	if err := db.AutoMigrate(&models.SecretRecord{}); err != nil {
		return nil, fmt.Errorf("migrate secret records: %w", err)
	}
	return &GormBackend{db: db}, nil
}

func (g *GormBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var rec models.SecretRecord
	err := g.db.WithContext(ctx).Where("record_key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read secret record: %w", err)
	}
	return rec.Ciphertext, nil
}

func (g *GormBackend) Put(ctx context.Context, key string, value []byte) error {
	rec := models.SecretRecord{Key: key, Ciphertext: value, UpdatedAt: time.Now().UTC()}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"ciphertext", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("write secret record: %w", err)
	}
	return nil
}

func (g *GormBackend) Delete(ctx context.Context, key string) error {
	if err := g.db.WithContext(ctx).Where("record_key = ?", key).Delete(&models.SecretRecord{}).Error; err != nil {
		return fmt.Errorf("delete secret record: %w", err)
	}
	return nil
}

func (g *GormBackend) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (g *GormBackend) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
