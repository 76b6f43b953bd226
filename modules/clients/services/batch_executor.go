package services

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/pkg/composables"
	"github.com/iota-uz/clientdesk/pkg/logging"
)

const DefaultMaxInFlight = 16

type ExecutorOptions struct {
	MaxInFlight int
	Logger      *logrus.Entry
}

func (o *ExecutorOptions) setDefaults() {
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = DefaultMaxInFlight
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
}

// BatchResult counts what a plan execution did. Upserts count rows, not statements.
type BatchResult struct {
	Added      int `json:"added"`
	Removed    int `json:"removed"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// BatchExecutor applies a plan against the store. Every operation runs to
// completion; a failed operation does not cancel its siblings.
type BatchExecutor struct {
	repo assignment.Repository
	opts ExecutorOptions
}

func NewBatchExecutor(repo assignment.Repository, opts ExecutorOptions) *BatchExecutor {
	opts.setDefaults()
	return &BatchExecutor{repo: repo, opts: opts}
}

// Execute issues one delete per removed (client, user) pair and one upsert per
// client with additions, all concurrently. Duplicate-key conflicts are treated
// as success. The first other error is returned after every operation finished.
func (e *BatchExecutor) Execute(ctx context.Context, plan []assignment.EntityDelta) (BatchResult, error) {
	// a pgx.Tx is bound to one connection; every operation uses its own
	ctx = composables.WithoutTx(ctx)

	var added, removed, duplicates, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(e.opts.MaxInFlight)

	for _, entity := range plan {
		for _, userID := range entity.ToRemove {
			g.Go(func() error {
				err := e.repo.Delete(ctx, entity.ClientID, userID)
				recordOperation("delete", err, false)
				if err != nil {
					failed.Add(1)
					e.opts.Logger.WithError(err).WithFields(logrus.Fields{
						"client_id": entity.ClientID,
						"user_id":   userID,
					}).Warn("assignment delete failed")
					return err
				}
				removed.Add(1)
				return nil
			})
		}

		if len(entity.ToAdd) == 0 {
			continue
		}
		rows := make([]assignment.Assignment, len(entity.ToAdd))
		for i, userID := range entity.ToAdd {
			rows[i] = assignment.New(entity.ClientID, userID)
		}
		g.Go(func() error {
			err := e.repo.Upsert(ctx, entity.ClientID, rows)
			dup := isDuplicateKey(err)
			recordOperation("upsert", err, dup)
			switch {
			case dup:
				duplicates.Add(1)
				e.opts.Logger.WithError(err).WithField("client_id", entity.ClientID).Debug("duplicate assignment ignored")
				return nil
			case err != nil:
				failed.Add(1)
				e.opts.Logger.WithError(err).WithField("client_id", entity.ClientID).Warn("assignment upsert failed")
				return err
			}
			added.Add(int64(len(rows)))
			return nil
		})
	}

	err := g.Wait()
	return BatchResult{
		Added:      int(added.Load()),
		Removed:    int(removed.Load()),
		Duplicates: int(duplicates.Load()),
		Failed:     int(failed.Load()),
	}, err
}
