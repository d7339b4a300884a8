// repository.gorm.go

package talestoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RevokedToken is the database row for a revoked token id.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	TokenHash string    `gorm:"uniqueIndex:idx_token_hash;type:varchar(64);not null"`
	ExpiresAt time.Time `gorm:"index:idx_expires_at;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for RevokedToken.
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

// GormRevocationStore is a SQL-backed implementation of RevocationStore for
// deployments that already carry a relational database. Rows outlive their
// TTL until CleanupExpired runs; IsRevoked ignores expired rows either way.
type GormRevocationStore struct {
	db *gorm.DB
}

// NewGormRevocationStore creates a new GORM-based revocation store,
// verifying the connection and migrating the revoked-token table.
func NewGormRevocationStore(db *gorm.DB) (*GormRevocationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := db.AutoMigrate(&RevokedToken{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return &GormRevocationStore{db: db}, nil
}

// Revoke marks a token id as revoked by storing its hash. Revoking an
// already-revoked id extends the expiration.
func (g *GormRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return fmt.Errorf("token id cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	tokenHash := hashTokenID(tokenID)
	row := RevokedToken{
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}

	result := g.db.WithContext(ctx).Create(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			update := g.db.WithContext(ctx).
				Model(&RevokedToken{}).
				Where("token_hash = ?", tokenHash).
				Update("expires_at", row.ExpiresAt)
			if update.Error != nil {
				return fmt.Errorf("failed to update revoked token: %w", update.Error)
			}
			return nil
		}
		return fmt.Errorf("failed to create revoked token: %w", result.Error)
	}
	return nil
}

// IsRevoked checks whether a token id has been revoked and is still within
// its revocation window.
func (g *GormRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, fmt.Errorf("token id cannot be empty")
	}

	var count int64
	result := g.db.WithContext(ctx).
		Model(&RevokedToken{}).
		Where("token_hash = ? AND expires_at > ?", hashTokenID(tokenID), time.Now()).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check revocation: %w", result.Error)
	}
	return count > 0, nil
}

// CleanupExpired removes rows whose revocation window has passed.
func (g *GormRevocationStore) CleanupExpired(ctx context.Context) error {
	result := g.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&RevokedToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to cleanup expired revocations: %w", result.Error)
	}
	return nil
}
