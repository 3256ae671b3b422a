package storage

import (
	"time"

	"github.com/jiin/lookout/internal/models"
)

// AlertLog defines the interface for alert history persistence
type AlertLog interface {
	// Save stores a newly fired alert and fills in its ID
	Save(alert *models.AlertRecord) error

	// Resolve marks the open alerts for a target as resolved
	Resolve(targetName string, at time.Time) error

	// ActiveByTarget returns the most recent unresolved alert per target
	ActiveByTarget() (map[string]models.AlertRecord, error)

	// Recent returns alerts fired within a time range, newest first
	Recent(from, to time.Time, limit int) ([]models.AlertRecord, error)

	// Stats aggregates alert counts
	Stats() (*models.AlertStats, error)

	// Cleanup removes resolved alerts older than the cutoff
	Cleanup(olderThan time.Time) (int64, error)

	// Close closes the storage connection
	Close() error
}
