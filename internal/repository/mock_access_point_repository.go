package repository

import (
	"context"

	"github.com/sebasr/wifi-registry/internal/models"
)

// MockAccessPointRepository is a mock implementation of AccessPointRepository for testing
type MockAccessPointRepository struct {
	CreateFunc  func(ctx context.Context, ap *models.AccessPoint) error
	GetFunc     func(ctx context.Context, bssid string) (*models.AccessPoint, error)
	ListFunc    func(ctx context.Context) ([]*models.AccessPoint, error)
	UpdateFunc  func(ctx context.Context, bssid string, ap *models.AccessPoint) error
	DeleteFunc  func(ctx context.Context, bssid string) error
	MigrateFunc func(ctx context.Context) error
}

// NewMockAccessPointRepository creates a mock whose reads find nothing and whose writes succeed
func NewMockAccessPointRepository() *MockAccessPointRepository {
	return &MockAccessPointRepository{
		CreateFunc: func(_ context.Context, _ *models.AccessPoint) error {
			return nil
		},
		GetFunc: func(_ context.Context, _ string) (*models.AccessPoint, error) {
			return nil, ErrAccessPointNotFound
		},
		ListFunc: func(_ context.Context) ([]*models.AccessPoint, error) {
			return []*models.AccessPoint{}, nil
		},
		UpdateFunc: func(_ context.Context, _ string, _ *models.AccessPoint) error {
			return ErrAccessPointNotFound
		},
		DeleteFunc: func(_ context.Context, _ string) error {
			return ErrAccessPointNotFound
		},
		MigrateFunc: func(_ context.Context) error {
			return nil
		},
	}
}

// Create implements AccessPointRepository.Create
func (m *MockAccessPointRepository) Create(ctx context.Context, ap *models.AccessPoint) error {
	return m.CreateFunc(ctx, ap)
}

// Get implements AccessPointRepository.Get
func (m *MockAccessPointRepository) Get(ctx context.Context, bssid string) (*models.AccessPoint, error) {
	return m.GetFunc(ctx, bssid)
}

// List implements AccessPointRepository.List
func (m *MockAccessPointRepository) List(ctx context.Context) ([]*models.AccessPoint, error) {
	return m.ListFunc(ctx)
}

// Update implements AccessPointRepository.Update
func (m *MockAccessPointRepository) Update(ctx context.Context, bssid string, ap *models.AccessPoint) error {
	return m.UpdateFunc(ctx, bssid, ap)
}

// Delete implements AccessPointRepository.Delete
func (m *MockAccessPointRepository) Delete(ctx context.Context, bssid string) error {
	return m.DeleteFunc(ctx, bssid)
}

// Migrate implements AccessPointRepository.Migrate
func (m *MockAccessPointRepository) Migrate(ctx context.Context) error {
	return m.MigrateFunc(ctx)
}
