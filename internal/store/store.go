package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"procodus.dev/telemetry-store/pkg/metrics"
)

// ErrEmptyPayload is returned by Insert when the submission carries no
// payload. Nothing is written in that case.
var ErrEmptyPayload = errors.New("payload cannot be empty")

// Store exposes the two operations of the record store: appending a
// submission and querying stored records newest first.
type Store struct {
	logger  *slog.Logger
	db      *gorm.DB
	metrics *metrics.ServerMetrics // Optional metrics
}

// Filter narrows a Query. The zero value selects everything.
type Filter struct {
	// Project filters by exact, case-sensitive project label.
	Project string
	// Limit caps the number of returned records when positive.
	Limit int
}

// NewStore creates a new Store instance.
func NewStore(logger *slog.Logger, db *gorm.DB, m *metrics.ServerMetrics) (*Store, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if db == nil {
		return nil, errors.New("database cannot be nil")
	}

	return &Store{
		logger:  logger,
		db:      db,
		metrics: m,
	}, nil
}

// Insert appends one record and returns it with its assigned id and
// creation time. An empty project is replaced by DefaultProject; an
// empty payload is rejected with ErrEmptyPayload before anything is
// written. Embedded timestamps are normalized best-effort: on any
// normalization error the original payload text is stored verbatim.
func (s *Store) Insert(ctx context.Context, project, payload string) (*Record, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	if project == "" {
		project = DefaultProject
	}

	normalized, err := Normalize(payload)
	if err != nil {
		// Non-fatal: keep the submission as received.
		s.logger.Warn("could not normalize payload timestamps",
			"project", project,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.NormalizationFailures.Inc()
		}
	}

	record := &Record{
		CreatedAt: Now(),
		Project:   project,
		Payload:   normalized,
	}

	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.DBOperationDuration.WithLabelValues("insert"))
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if s.metrics != nil {
			timer.ObserveDuration()
			s.metrics.DBOperationsTotal.WithLabelValues("insert", "error").Inc()
		}
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	if s.metrics != nil {
		timer.ObserveDuration()
		s.metrics.DBOperationsTotal.WithLabelValues("insert", "success").Inc()
	}

	s.logger.Info("record stored",
		"id", record.ID,
		"project", record.Project,
	)

	s.verifyInsert(ctx, record.ID)

	return record, nil
}

// verifyInsert re-reads a just-written row by id. A miss is an
// internal consistency failure: it is logged and counted, but the
// insert already committed so the caller still sees success.
func (s *Store) verifyInsert(ctx context.Context, id uint) {
	var stored Record
	if err := s.db.WithContext(ctx).First(&stored, id).Error; err != nil {
		s.logger.Error("record verification failed",
			"id", id,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.VerificationFailures.Inc()
		}
		return
	}

	s.logger.Debug("record verified", "id", stored.ID)
}

// Query returns stored records matching the filter, most recent first.
// Records sharing a creation second are ordered by descending id, so
// the result order is deterministic. An empty result is not an error.
func (s *Store) Query(ctx context.Context, filter Filter) ([]Record, error) {
	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.DBOperationDuration.WithLabelValues("select"))
		defer timer.ObserveDuration()
	}

	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")

	if filter.Project != "" {
		query = query.Where("project = ?", filter.Project)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []Record
	if err := query.Find(&records).Error; err != nil {
		if s.metrics != nil {
			s.metrics.DBOperationsTotal.WithLabelValues("select", "error").Inc()
		}
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	if s.metrics != nil {
		s.metrics.DBOperationsTotal.WithLabelValues("select", "success").Inc()
	}

	s.logger.Info("records retrieved",
		"project", filter.Project,
		"limit", filter.Limit,
		"count", len(records),
	)

	return records, nil
}
