package model

import "time"

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string

// AuditEventType identifies the type of auditable event.
type AuditEventType string

const (
	EventTypeBackupCreate AuditEventType = "backup_create"
	EventTypePurge        AuditEventType = "purge"
	EventTypeRestore      AuditEventType = "restore"
	EventTypeQuarantine   AuditEventType = "quarantine"
)

// AuditRecord is a single line in the audit log (JSONL format).
type AuditRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	EventType  AuditEventType `json:"event_type"`
	Store      string         `json:"store,omitempty"`
	BackupName string         `json:"backup_name,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	PrevHash   HashValue      `json:"prev_hash"`
	RecordHash HashValue      `json:"record_hash"`
}
