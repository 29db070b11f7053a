// Package store provides the append-only record store backing the
// telemetry ingestion and query API.
package store

import (
	"time"
)

// DefaultProject is the sentinel project label used when a submission
// does not name one.
const DefaultProject = "unknown"

// Record is one stored telemetry submission. Records are append-only:
// once written they are never updated or deleted.
type Record struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"index:idx_project_created_at;index:idx_created_at;not null"`
	Project   string    `gorm:"index:idx_project_created_at;not null"`
	Payload   string    `gorm:"not null"`
}

// TableName specifies the table name for the Record model.
func (Record) TableName() string {
	return "records"
}
