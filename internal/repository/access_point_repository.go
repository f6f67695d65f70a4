package repository

import (
	"context"
	"errors"

	"github.com/sebasr/wifi-registry/internal/models"
)

var (
	// ErrAccessPointNotFound is returned when no record exists for a bssid
	ErrAccessPointNotFound = errors.New("access point not found")

	// ErrAccessPointExists is returned when creating a record whose bssid is already stored
	ErrAccessPointExists = errors.New("access point already exists")

	// ErrBSSIDImmutable is returned when an update tries to change a record's bssid
	ErrBSSIDImmutable = errors.New("bssid cannot be changed")
)

// AccessPointRepository defines the interface for access point storage.
// BSSID lookups are case-insensitive.
type AccessPointRepository interface {
	// Create stores a new record, failing with ErrAccessPointExists when the bssid is taken
	Create(ctx context.Context, ap *models.AccessPoint) error

	// Get retrieves a record by bssid
	Get(ctx context.Context, bssid string) (*models.AccessPoint, error)

	// List returns every record in insertion order
	List(ctx context.Context) ([]*models.AccessPoint, error)

	// Update replaces every mutable column of an existing record
	Update(ctx context.Context, bssid string, ap *models.AccessPoint) error

	// Delete removes a record
	Delete(ctx context.Context, bssid string) error

	// Migrate creates or extends the schema. It is safe to run repeatedly.
	Migrate(ctx context.Context) error
}
