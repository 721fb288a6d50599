package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/leadflow/internal/database"
	"github.com/BaSui01/leadflow/types"
)

// handoffRecordModel is the gorm mapping for a decision record.
type handoffRecordModel struct {
	ID            string    `gorm:"primaryKey;size:36"`
	ContactID     string    `gorm:"index:idx_contact_decided,priority:1;size:128;not null"`
	SourceHandler string    `gorm:"size:128;not null"`
	TargetHandler string    `gorm:"size:128;not null"`
	Confidence    float64   `gorm:"not null"`
	Decision      string    `gorm:"size:16;not null"`
	Reason        string    `gorm:"size:32"`
	Outcome       string    `gorm:"size:16;not null"`
	DecidedAt     time.Time `gorm:"index:idx_contact_decided,priority:2;not null"`
}

func (handoffRecordModel) TableName() string { return "handoff_records" }

// assignmentModel is the gorm mapping for the live assignment.
type assignmentModel struct {
	ContactID      string    `gorm:"primaryKey;size:128"`
	CurrentHandler string    `gorm:"size:128;not null"`
	AssignedAt     time.Time `gorm:"not null"`
}

func (assignmentModel) TableName() string { return "conversation_assignments" }

// GormStore is the durable Store backed by sqlite or postgres.
type GormStore struct {
	db            *gorm.DB
	outcomeWindow time.Duration
	logger        *zap.Logger
}

// GormStoreOptions configures a GormStore.
type GormStoreOptions struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	DSN    string

	// OutcomeWindow bounds how long after a decision an outcome may still
	// be recorded. Zero means unbounded.
	OutcomeWindow time.Duration

	// Pool overrides the connection pool settings. Nil picks a default
	// matching the driver.
	Pool *database.PoolConfig
}

// NewGormStore opens the database, migrates the schema, and returns the store.
func NewGormStore(opts GormStoreOptions, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(opts.DSN)
	case "postgres":
		dialector = postgres.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pool := database.DefaultPoolConfig()
	if opts.Driver == "sqlite" || opts.Driver == "" {
		pool = database.SQLitePoolConfig()
	}
	if opts.Pool != nil {
		pool = *opts.Pool
	}
	if err := database.Configure(db, pool, logger); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&handoffRecordModel{}, &assignmentModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	return &GormStore{
		db:            db,
		outcomeWindow: opts.OutcomeWindow,
		logger:        logger.With(zap.String("component", "history_store")),
	}, nil
}

func toModel(r types.HandoffRecord) handoffRecordModel {
	return handoffRecordModel{
		ID:            r.ID,
		ContactID:     r.ContactID,
		SourceHandler: r.SourceHandler,
		TargetHandler: r.TargetHandler,
		Confidence:    r.Confidence,
		Decision:      string(r.Decision),
		Reason:        string(r.Reason),
		Outcome:       string(r.Outcome),
		DecidedAt:     r.DecidedAt,
	}
}

func fromModel(m handoffRecordModel) types.HandoffRecord {
	return types.HandoffRecord{
		ID:            m.ID,
		ContactID:     m.ContactID,
		SourceHandler: m.SourceHandler,
		TargetHandler: m.TargetHandler,
		Confidence:    m.Confidence,
		Decision:      types.DecisionKind(m.Decision),
		Reason:        types.ReasonCode(m.Reason),
		Outcome:       types.Outcome(m.Outcome),
		DecidedAt:     m.DecidedAt,
	}
}

func normalize(r *types.HandoffRecord) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Outcome == "" {
		r.Outcome = types.OutcomeUnknown
	}
	if r.DecidedAt.IsZero() {
		r.DecidedAt = time.Now().UTC()
	}
}

// Append implements Store.
func (s *GormStore) Append(ctx context.Context, record types.HandoffRecord) (string, error) {
	normalize(&record)
	if err := s.db.WithContext(ctx).Create(toModel(record)).Error; err != nil {
		return "", types.NewError(types.ErrStoreUnavailable, "history append failed").WithCause(err)
	}
	return record.ID, nil
}

// Commit implements Store. Record insert and assignment upsert share one
// transaction.
func (s *GormStore) Commit(ctx context.Context, record types.HandoffRecord) (string, error) {
	normalize(&record)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toModel(record)).Error; err != nil {
			return err
		}
		assignment := assignmentModel{
			ContactID:      record.ContactID,
			CurrentHandler: record.TargetHandler,
			AssignedAt:     record.DecidedAt,
		}
		return tx.Save(&assignment).Error
	})
	if err != nil {
		return "", types.NewError(types.ErrStoreUnavailable, "history commit failed").WithCause(err)
	}
	return record.ID, nil
}

// FindReverseEdge implements Store.
func (s *GormStore) FindReverseEdge(ctx context.Context, contactID, from, to string, within time.Duration) (*types.HandoffRecord, error) {
	cutoff := time.Now().UTC().Add(-within)

	var m handoffRecordModel
	err := s.db.WithContext(ctx).
		Where("contact_id = ? AND source_handler = ? AND target_handler = ? AND decision = ? AND decided_at >= ?",
			contactID, from, to, string(types.DecisionHandoff), cutoff).
		Order("decided_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "reverse edge lookup failed").WithCause(err)
	}

	record := fromModel(m)
	return &record, nil
}

// RecordOutcome implements Store.
func (s *GormStore) RecordOutcome(ctx context.Context, recordID string, outcome types.Outcome) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m handoffRecordModel
		if err := tx.First(&m, "id = ?", recordID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return types.NewError(types.ErrStoreUnavailable, "outcome lookup failed").WithCause(err)
		}

		if m.Outcome != string(types.OutcomeUnknown) {
			return ErrOutcomeClosed
		}
		if s.outcomeWindow > 0 && time.Since(m.DecidedAt) > s.outcomeWindow {
			return ErrOutcomeClosed
		}

		res := tx.Model(&handoffRecordModel{}).
			Where("id = ?", recordID).
			Update("outcome", string(outcome))
		if res.Error != nil {
			return types.NewError(types.ErrStoreUnavailable, "outcome update failed").WithCause(res.Error)
		}
		return nil
	})
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, recordID string) (*types.HandoffRecord, error) {
	var m handoffRecordModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", recordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "record lookup failed").WithCause(err)
	}
	record := fromModel(m)
	return &record, nil
}

// Assignment implements Store.
func (s *GormStore) Assignment(ctx context.Context, contactID string) (*types.ConversationAssignment, error) {
	var m assignmentModel
	err := s.db.WithContext(ctx).First(&m, "contact_id = ?", contactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "assignment lookup failed").WithCause(err)
	}
	return &types.ConversationAssignment{
		ContactID:      m.ContactID,
		CurrentHandler: m.CurrentHandler,
		AssignedAt:     m.AssignedAt,
	}, nil
}

// SetAssignment implements Store.
func (s *GormStore) SetAssignment(ctx context.Context, contactID, handler string, at time.Time) error {
	m := assignmentModel{ContactID: contactID, CurrentHandler: handler, AssignedAt: at}
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return types.NewError(types.ErrStoreUnavailable, "assignment update failed").WithCause(err)
	}
	return nil
}

// PurgeOlderThan implements Store.
func (s *GormStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("decided_at < ?", cutoff).
		Delete(&handoffRecordModel{})
	if res.Error != nil {
		return 0, types.NewError(types.ErrStoreUnavailable, "history purge failed").WithCause(res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("purged expired handoff records", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
