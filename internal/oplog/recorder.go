// Package oplog writes the append-only audit trail of token and API
// operations. Writes are best-effort: a failed log write never changes the
// outcome of the operation being logged.
package oplog

import (
	"log"
	"sync"
	"time"

	"github.com/adgate/adgate/internal/db/models"
	"github.com/adgate/adgate/internal/util"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxErrorMessageSize limits stored provider error payloads to 8KB.
const MaxErrorMessageSize = 8 * 1024

// Recorder is the audit side-channel injected into the token manager and the
// API invoker.
type Recorder interface {
	Record(entry models.OperationLogEntry)
}

// DBRecorder persists entries asynchronously through gorm.
type DBRecorder struct {
	db *gorm.DB
	wg sync.WaitGroup
}

// NewDBRecorder creates a recorder backed by the given database.
func NewDBRecorder(db *gorm.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

// Record saves an entry without blocking the caller. ID and timestamp are
// filled in when absent; oversized error payloads are truncated.
func (r *DBRecorder) Record(entry models.OperationLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}
	if len(entry.ErrorMessage) > MaxErrorMessageSize {
		entry.ErrorMessage = util.TruncateLog(entry.ErrorMessage, MaxErrorMessageSize)
	}

	r.wg.Add(1)
	go func(e models.OperationLogEntry) {
		defer r.wg.Done()
		if err := r.db.Create(&e).Error; err != nil {
			log.Printf("[OpLog] Failed to save entry (%s/%s): %v", e.OperationType, e.Status, err)
		}
	}(entry)
}

// Flush waits for all in-flight writes. Used at shutdown and in tests.
func (r *DBRecorder) Flush() {
	r.wg.Wait()
}

// Recent returns the newest entries, optionally restricted to the last
// sinceMinutes minutes.
func (r *DBRecorder) Recent(limit int, sinceMinutes int) ([]models.OperationLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []models.OperationLogEntry
	query := r.db.Order("timestamp DESC").Limit(limit)
	if sinceMinutes > 0 {
		since := time.Now().Add(-time.Duration(sinceMinutes) * time.Minute).UnixMilli()
		query = query.Where("timestamp >= ?", since)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Stats aggregates success and error counts across the whole trail.
func (r *DBRecorder) Stats() (models.OperationStats, error) {
	var stats models.OperationStats
	if err := r.db.Model(&models.OperationLogEntry{}).Count(&stats.TotalOperations).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.OperationLogEntry{}).Where("status = ?", models.StatusSuccess).Count(&stats.SuccessCount).Error; err != nil {
		return stats, err
	}
	stats.ErrorCount = stats.TotalOperations - stats.SuccessCount
	return stats, nil
}
