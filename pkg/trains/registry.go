// Package trains holds the live train board and turns train updates into
// rule evaluations.
package trains

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"stationpa/pkg/model"
	"stationpa/pkg/store"
	"stationpa/pkg/validation"
)

// ErrTrainNotFound is returned for an unknown train id.
var ErrTrainNotFound = errors.New("train not found")

// Evaluator reacts to a train transition. The rule engine implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, old, cur model.Train) ([]model.Record, error)
}

// Registry serialises train updates so each read-merge-write-evaluate
// sequence is atomic with respect to concurrent updates.
type Registry struct {
	mu    sync.Mutex
	store store.TrainStore
	rules Evaluator
}

// NewRegistry creates a registry. rules may be nil.
func NewRegistry(s store.TrainStore, rules Evaluator) *Registry {
	return &Registry{store: s, rules: rules}
}

// List returns the trains in insertion order.
func (r *Registry) List(ctx context.Context) ([]model.Train, error) {
	trains, err := r.store.ListTrains(ctx)
	if err != nil {
		return nil, err
	}
	if trains == nil {
		trains = []model.Train{}
	}
	return trains, nil
}

// Get returns a single train.
func (r *Registry) Get(ctx context.Context, id string) (*model.Train, error) {
	t, err := r.store.GetTrain(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTrainNotFound, id)
	}
	return t, err
}

// Update merges patch onto the stored train, saves it and runs the rule
// engine before returning. Rule failures are logged and never fail or roll
// back the update.
func (r *Registry) Update(ctx context.Context, id string, patch model.TrainPatch) (*model.Train, error) {
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(*old)
	if err := r.store.SaveTrain(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to save train: %w", err)
	}
	slog.Info("Train updated", "id", id, "number", updated.TrainNumber, "status", updated.Status, "platform", updated.Platform)

	if r.rules != nil {
		recs, err := r.rules.Evaluate(ctx, *old, updated)
		if err != nil {
			slog.Error("Rule evaluation failed", "train", id, "error", err)
		}
		if len(recs) > 0 {
			slog.Debug("Automatic announcements created", "train", id, "count", len(recs))
		}
	}

	return &updated, nil
}
