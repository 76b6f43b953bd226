package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/pkg/logging"
)

const (
	DefaultReadChunkSize  = 100
	DefaultReadPageSize   = 1000
	DefaultReadChunkDelay = 50 * time.Millisecond
)

type LoaderOptions struct {
	ChunkSize  int
	PageSize   int
	ChunkDelay time.Duration
	Logger     *logrus.Entry
}

func (o *LoaderOptions) setDefaults() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultReadChunkSize
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultReadPageSize
	}
	if o.ChunkDelay < 0 {
		o.ChunkDelay = 0
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
}

// StateLoader hydrates the existing assignment state of a set of clients.
type StateLoader struct {
	repo assignment.Repository
	opts LoaderOptions
}

func NewStateLoader(repo assignment.Repository, opts LoaderOptions) *StateLoader {
	opts.setDefaults()
	return &StateLoader{repo: repo, opts: opts}
}

// Load reads the assignments of clientIDs chunk by chunk. Inside a chunk it
// pages until a page shorter than the page size comes back. Chunks are
// spaced by ChunkDelay.
func (l *StateLoader) Load(ctx context.Context, clientIDs []string) (assignment.StateMap, error) {
	ids := uniqueSorted(clientIDs)
	limiter := rate.NewLimiter(rate.Inf, 1)
	if l.opts.ChunkDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(l.opts.ChunkDelay), 1)
	}

	var rows []assignment.Assignment
	pages := 0
	for chunk := range slices.Chunk(ids, l.opts.ChunkSize) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait between chunks: %w", err)
		}
		for offset := 0; ; offset += l.opts.PageSize {
			page, err := l.repo.ListPage(ctx, chunk, l.opts.PageSize, offset)
			if err != nil {
				return nil, fmt.Errorf("load assignments page (offset %d): %w", offset, err)
			}
			pages++
			recordPage()
			rows = append(rows, page...)
			if len(page) < l.opts.PageSize {
				break
			}
		}
	}

	l.opts.Logger.WithFields(logrus.Fields{
		"clients": len(ids),
		"rows":    len(rows),
		"pages":   pages,
	}).Debug("existing assignment state loaded")
	return assignment.FromAssignments(ids, rows), nil
}

func uniqueSorted(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
