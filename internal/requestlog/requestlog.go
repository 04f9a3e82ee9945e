// Package requestlog persists per-request routing/usage stats every
// dispatch calls recordRequest(stats) for: one row per dispatched request,
// independent of whether the upstream call succeeded. It generalizes
// per-provider token accounting into the full routing-decision shape, and
// is built on gorm.io/gorm directly, on the connection cmd/router opens. It
// is the only package that writes to that database: the config hot-reload
// manager and the api-key registry keep their state in memory.
package requestlog

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Stats is the shape recordRequest persists for each dispatched request.
type Stats struct {
	Timestamp         time.Time
	Provider          string
	Model             string
	RealModel         string
	ProfileID         string
	Tier              string
	TierScore         float64
	Task              string
	LatencyMs         int64
	PromptTokens      int
	CompletionTokens  int
	EstimatedCostUSD  *float64
	ActualCostUSD     *float64
	Success           bool
	Error             string
}

// Sink is the external collaborator interface the dispatcher depends on.
// Any persistence strategy can implement it; GormSink and NoopSink are the
// two the router ships.
type Sink interface {
	RecordRequest(ctx context.Context, stats Stats)
}

// NoopSink discards every record — used when no database is configured.
type NoopSink struct{}

func (NoopSink) RecordRequest(context.Context, Stats) {}

// Record is the gorm row backing GormSink.
type Record struct {
	ID               uint `gorm:"primarykey"`
	Timestamp        time.Time `gorm:"index"`
	Provider         string    `gorm:"index"`
	Model            string
	RealModel        string
	ProfileID        string `gorm:"index"`
	Tier             string
	TierScore        float64
	Task             string
	LatencyMs        int64
	PromptTokens     int
	CompletionTokens int
	EstimatedCostUSD *float64
	ActualCostUSD    *float64
	Success          bool
	Error            string
}

func (Record) TableName() string { return "request_log" }

// GormSink is the durable sink, AutoMigrated against db at construction.
type GormSink struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormSink migrates the request_log table and returns a ready sink.
func NewGormSink(db *gorm.DB, logger *zap.Logger) (*GormSink, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &GormSink{db: db, logger: logger}, nil
}

// RecordRequest writes one row. Failures are logged, not propagated: a
// broken request-log sink must never fail the chat-completion request it
// is describing.
func (s *GormSink) RecordRequest(ctx context.Context, stats Stats) {
	ts := stats.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	rec := Record{
		Timestamp:        ts,
		Provider:         stats.Provider,
		Model:            stats.Model,
		RealModel:        stats.RealModel,
		ProfileID:        stats.ProfileID,
		Tier:             stats.Tier,
		TierScore:        stats.TierScore,
		Task:             stats.Task,
		LatencyMs:        stats.LatencyMs,
		PromptTokens:     stats.PromptTokens,
		CompletionTokens: stats.CompletionTokens,
		EstimatedCostUSD: stats.EstimatedCostUSD,
		ActualCostUSD:    stats.ActualCostUSD,
		Success:          stats.Success,
		Error:            stats.Error,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		s.logger.Warn("failed to persist request-log record", zap.Error(err))
	}
}
