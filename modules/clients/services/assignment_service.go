package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/pkg/composables"
	"github.com/iota-uz/clientdesk/pkg/eventbus"
)

var tracer = otel.Tracer("clientdesk-clients")

// ErrEmptyDesiredState is returned when a save names no clients.
var ErrEmptyDesiredState = errors.New("desired state names no clients")

// SaveResult is returned for every save attempt. State is re-read from the
// store after execution, so it reflects partial failures.
type SaveResult struct {
	Plan  []assignment.EntityDelta `json:"plan"`
	Batch BatchResult              `json:"batch"`
	State assignment.StateMap      `json:"-"`
}

type AssignmentService struct {
	loader   *StateLoader
	executor *BatchExecutor
	bus      eventbus.EventBus
	locks    *tenantLocks
	now      func() time.Time
}

func NewAssignmentService(loader *StateLoader, executor *BatchExecutor, bus eventbus.EventBus) *AssignmentService {
	return &AssignmentService{
		loader:   loader,
		executor: executor,
		bus:      bus,
		locks:    newTenantLocks(),
		now:      time.Now,
	}
}

// Load returns the persisted state of clientIDs.
func (s *AssignmentService) Load(ctx context.Context, clientIDs []string) (assignment.StateMap, error) {
	ctx, span := tracer.Start(ctx, "clients.assignments.load")
	defer span.End()
	span.SetAttributes(attribute.Int("clients.count", len(clientIDs)))

	state, err := s.loader.Load(ctx, clientIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return state, nil
}

// Preview computes the plan for desired without touching the store.
func (s *AssignmentService) Preview(ctx context.Context, desired assignment.StateMap) ([]assignment.EntityDelta, error) {
	if len(desired) == 0 {
		return nil, ErrEmptyDesiredState
	}
	existing, err := s.Load(ctx, desired.ClientIDs())
	if err != nil {
		return nil, err
	}
	return assignment.Plan(existing, desired), nil
}

// Save reconciles the store with desired. Saves of one tenant run one at a
// time; desired is copied before anything else so later caller edits do not
// leak into this save.
func (s *AssignmentService) Save(ctx context.Context, desired assignment.StateMap) (SaveResult, error) {
	snapshot := desired.Clone()
	if len(snapshot) == 0 {
		return SaveResult{}, ErrEmptyDesiredState
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return SaveResult{}, err
	}

	ctx, span := tracer.Start(ctx, "clients.assignments.save")
	defer span.End()
	logger := composables.UseLogger(ctx).WithFields(logrus.Fields{
		"component": "clients.assignments",
		"tenant_id": tenantID,
	})

	unlock, err := s.locks.Lock(ctx, tenantID)
	if err != nil {
		return SaveResult{}, fmt.Errorf("wait for pending save: %w", err)
	}
	defer unlock()

	start := s.now()
	clientIDs := snapshot.ClientIDs()
	existing, err := s.loader.Load(ctx, clientIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SaveResult{}, err
	}

	plan := assignment.Plan(existing, snapshot)
	adds, removes := assignment.Totals(plan)
	span.SetAttributes(
		attribute.Int("clients.count", len(clientIDs)),
		attribute.Int("plan.entities", len(plan)),
		attribute.Int("plan.adds", adds),
		attribute.Int("plan.removes", removes),
	)
	if len(plan) == 0 {
		logger.Debug("assignments already up to date")
		recordSave("noop", time.Since(start).Seconds())
		return SaveResult{Plan: plan, State: existing}, nil
	}

	batch, execErr := s.executor.Execute(ctx, plan)

	state, reloadErr := s.loader.Load(ctx, clientIDs)
	result := SaveResult{Plan: plan, Batch: batch, State: state}

	s.bus.Publish(&assignment.ChangedEvent{
		TenantID:  tenantID,
		ClientIDs: entityIDs(plan),
		Added:     batch.Added,
		Removed:   batch.Removed,
		Failed:    batch.Failed,
		At:        s.now(),
	})

	fields := logrus.Fields{
		"entities":   len(plan),
		"added":      batch.Added,
		"removed":    batch.Removed,
		"duplicates": batch.Duplicates,
		"failed":     batch.Failed,
	}
	if execErr != nil {
		recordSave("error", time.Since(start).Seconds())
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
		logger.WithFields(fields).WithError(execErr).Error("assignment save partially failed")
		if reloadErr != nil {
			return result, errors.Join(execErr, fmt.Errorf("reload state: %w", reloadErr))
		}
		return result, execErr
	}
	recordSave("ok", time.Since(start).Seconds())
	logger.WithFields(fields).Info("assignments saved")
	if reloadErr != nil {
		return result, fmt.Errorf("reload state: %w", reloadErr)
	}
	return result, nil
}

func entityIDs(plan []assignment.EntityDelta) []string {
	out := make([]string, len(plan))
	for i, e := range plan {
		out[i] = e.ClientID
	}
	return out
}
