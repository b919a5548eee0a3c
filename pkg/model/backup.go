package model

import (
	"strings"
	"time"
)

// BackupKind classifies a backup by the operation that produced it.
type BackupKind string

const (
	BackupManual     BackupKind = "manual"
	BackupPrePurge   BackupKind = "pre-purge"
	BackupPreRestore BackupKind = "pre-restore"
	BackupCorrupted  BackupKind = "corrupted"
)

// Name prefixes reserved for automatically created backups.
const (
	PrefixPrePurge   = "pre-purge-"
	PrefixPreRestore = "pre-restore-"
	PrefixCorrupted  = "corrupted-"
	PrefixGenerated  = "backup-"
)

// KindOf derives the kind of a backup from its name.
func KindOf(name string) BackupKind {
	switch {
	case strings.HasPrefix(name, PrefixPrePurge):
		return BackupPrePurge
	case strings.HasPrefix(name, PrefixPreRestore):
		return BackupPreRestore
	case strings.HasPrefix(name, PrefixCorrupted):
		return BackupCorrupted
	}
	return BackupManual
}

// BackupMetadata describes an immutable point-in-time copy of the store.
type BackupMetadata struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	Kind       BackupKind `json:"kind"`
	Created    time.Time  `json:"created"`
	Size       int64      `json:"size"`
	EntryCount int        `json:"entryCount"`
}

// PurgeResult reports the outcome of a purge.
type PurgeResult struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	EntriesAffected int             `json:"entriesAffected"`
	PreservedCount  *int            `json:"preservedCount,omitempty"`
	WasCorrupted    bool            `json:"wasCorrupted,omitempty"`
	Backup          *BackupMetadata `json:"backup,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// RestoreResult reports the outcome of a restore.
type RestoreResult struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	EntriesCount int             `json:"entriesCount"`
	Backup       *BackupMetadata `json:"backup,omitempty"`
	Error        string          `json:"error,omitempty"`
}
