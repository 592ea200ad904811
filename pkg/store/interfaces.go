package store

import (
	"context"
	"errors"

	"stationpa/pkg/model"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when inserting an entity whose id is already taken.
	ErrDuplicate = errors.New("duplicate id")
)

// TemplateStore handles announcement template persistence.
// Listings are in insertion order.
type TemplateStore interface {
	ListTemplates(ctx context.Context) ([]model.Template, error)
	ListEnabledTemplates(ctx context.Context) ([]model.Template, error)
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	CreateTemplate(ctx context.Context, t *model.Template) error
}

// TrainStore handles train state persistence.
type TrainStore interface {
	ListTrains(ctx context.Context) ([]model.Train, error)
	GetTrain(ctx context.Context, id string) (*model.Train, error)
	// SaveTrain inserts or replaces a train. Replacing keeps the listing position.
	SaveTrain(ctx context.Context, t *model.Train) error
}

// RecordStore handles announcement record persistence.
type RecordStore interface {
	CreateRecord(ctx context.Context, r *model.Record) error
	GetRecord(ctx context.Context, id string) (*model.Record, error)
	UpdateRecord(ctx context.Context, id string, patch model.RecordPatch) (*model.Record, error)
	// ListRecentRecords returns newest first by createdAt, ties by insertion order descending.
	ListRecentRecords(ctx context.Context, limit int) ([]model.Record, error)
	// ListPendingRecords returns pending records oldest first.
	ListPendingRecords(ctx context.Context, limit int) ([]model.Record, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
}

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	TemplateStore
	TrainStore
	RecordStore
	StateStore

	// Close closes the store connection.
	Close() error
}
