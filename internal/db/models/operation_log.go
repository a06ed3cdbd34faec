package models

// Operation types recorded in the audit trail. API calls use the
// caller-supplied operation name (e.g. "list_campaigns").
const (
	OpInitialConnection = "initial_connection"
	OpRefreshToken      = "refresh_token"
)

// Statuses for OperationLogEntry.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// OperationLogEntry is one immutable audit record. Rows are append-only:
// nothing in the service updates or deletes them.
type OperationLogEntry struct {
	ID            string `gorm:"primaryKey" json:"id"`
	AdvertiserID  string `gorm:"index" json:"advertiser_id"`
	PlatformID    string `json:"platform_id"`
	OperationType string `gorm:"index" json:"operation_type"`
	Status        string `json:"status"`
	ErrorMessage  string `gorm:"type:text" json:"error_message,omitempty"`
	Timestamp     int64  `gorm:"index" json:"timestamp"` // unix milliseconds
}

// OperationStats holds aggregated statistics for the audit trail.
type OperationStats struct {
	TotalOperations int64 `json:"total_operations"`
	SuccessCount    int64 `json:"success_count"`
	ErrorCount      int64 `json:"error_count"`
}
