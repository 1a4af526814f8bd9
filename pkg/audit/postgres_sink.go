package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

// Entry is the persisted shape of one audit record.
type Entry struct {
	ID             string    `gorm:"primaryKey"`
	Timestamp      time.Time `gorm:"index"`
	Direction      string
	Status         string
	Recommendation string
	CustomerID     string `gorm:"index"`
	ConversationID string `gorm:"index"`
	Attempt        int
	Issues         []byte `gorm:"type:jsonb"`
	LatencyMS      int64
	Aborted        bool
	Note           string
}

func (Entry) TableName() string {
	return "audit_log_entries"
}

// PostgresSink writes entries through gorm. Inserts only; the table is
// append-only by contract.
type PostgresSink struct {
	db *gorm.DB
}

func NewPostgresSink(db *gorm.DB) (*PostgresSink, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate audit table: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) Name() string {
	return "postgres"
}

func (s *PostgresSink) Write(ctx context.Context, entry types.AuditLogEntry) error {
	issues, err := json.Marshal(entry.Result.Issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	record := Entry{
		ID:             entry.ID,
		Timestamp:      entry.Timestamp,
		Direction:      string(entry.Direction),
		Status:         string(entry.Result.Status),
		Recommendation: string(entry.Result.Recommendation),
		CustomerID:     entry.Context.CustomerID,
		ConversationID: entry.Context.ConversationID,
		Attempt:        entry.Context.Attempt,
		Issues:         issues,
		LatencyMS:      entry.Latency.Milliseconds(),
		Aborted:        entry.Aborted,
		Note:           entry.Note,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
