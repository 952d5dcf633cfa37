package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rezonia/einvoice-gateway/internal/logger"
	"github.com/rezonia/einvoice-gateway/internal/model"
)

// credentialRecord is the row of tenant_fiscal_credentials
type credentialRecord struct {
	TenantID     string `gorm:"primaryKey;size:64"`
	Identity     string `gorm:"size:255;not null"`
	SealedSecret string `gorm:"type:text;not null"`
	Environment  string `gorm:"size:16;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName implements gorm's tabler
func (credentialRecord) TableName() string {
	return "tenant_fiscal_credentials"
}

// GormStore implements StoredSource on a gorm database
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store on db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// OpenSQLite opens a sqlite database logging through zap
func OpenSQLite(path string, zapLogger *zap.Logger) (*gorm.DB, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.NewGormLogger(zapLogger, gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the credential table
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&credentialRecord{})
}

// Lookup implements StoredSource
func (s *GormStore) Lookup(ctx context.Context, tenantID string) (*StoredRecord, error) {
	var row credentialRecord
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &StoredRecord{
		TenantID:     row.TenantID,
		Identity:     row.Identity,
		SealedSecret: row.SealedSecret,
		Environment:  model.Environment(row.Environment),
	}, nil
}

// Put creates or replaces the record of a tenant
func (s *GormStore) Put(ctx context.Context, rec StoredRecord) error {
	if rec.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if !rec.Environment.Valid() {
		return fmt.Errorf("unknown environment %q", rec.Environment)
	}
	row := credentialRecord{
		TenantID:     rec.TenantID,
		Identity:     rec.Identity,
		SealedSecret: rec.SealedSecret,
		Environment:  string(rec.Environment),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"identity", "sealed_secret", "environment", "updated_at"}),
		}).
		Create(&row).Error
}

// Delete removes the record of a tenant
func (s *GormStore) Delete(ctx context.Context, tenantID string) error {
	return s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&credentialRecord{}).Error
}
