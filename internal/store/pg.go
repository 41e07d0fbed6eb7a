package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/artfolio/chainmarket/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates or updates the journal table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&schema.CommandJournal{})
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. It accesses the underlying *sql.DB and sets the pool
// configuration. If any of the pool settings are 0 or empty, reasonable
// defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings
// into safe values.
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// AppendCommand persists a journaled command
func (s *pgStore) AppendCommand(ctx context.Context, cmd *schema.CommandJournal) error {
	if err := s.db.WithContext(ctx).Create(cmd).Error; err != nil {
		return fmt.Errorf("failed to append command seq %d: %w", cmd.Seq, err)
	}
	return nil
}

// ListCommands retrieves journaled commands after afterSeq in ascending order
func (s *pgStore) ListCommands(ctx context.Context, afterSeq uint64, limit int) ([]schema.CommandJournal, error) {
	var cmds []schema.CommandJournal
	q := s.db.WithContext(ctx).
		Where("seq > ?", afterSeq).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&cmds).Error; err != nil {
		return nil, fmt.Errorf("failed to list commands after seq %d: %w", afterSeq, err)
	}
	return cmds, nil
}

// LatestSeq returns the highest journaled sequence number, 0 when empty
func (s *pgStore) LatestSeq(ctx context.Context) (uint64, error) {
	var seq *uint64
	err := s.db.WithContext(ctx).
		Model(&schema.CommandJournal{}).
		Select("MAX(seq)").
		Scan(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get latest seq: %w", err)
	}
	if seq == nil {
		return 0, nil
	}
	return *seq, nil
}

// CountCommands returns the total number of journaled commands
func (s *pgStore) CountCommands(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&schema.CommandJournal{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count commands: %w", err)
	}
	return count, nil
}
