package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iota-uz/clientdesk/modules/clients/domain/entities/client"
	"github.com/iota-uz/clientdesk/modules/clients/domain/entities/importrow"
	"github.com/iota-uz/clientdesk/pkg/composables"
	"github.com/iota-uz/clientdesk/pkg/csvio"
	"github.com/iota-uz/clientdesk/pkg/drivelink"
	"github.com/iota-uz/clientdesk/pkg/eventbus"
)

// DefaultWorkspaceName receives rows that leave the workspace column empty.
const DefaultWorkspaceName = "Unassigned"

// ErrEmptyImport is returned when a file holds no importable rows.
var ErrEmptyImport = errors.New("import file contains no client rows")

type RowStatus string

const (
	RowCreated   RowStatus = "created"
	RowValid     RowStatus = "valid"
	RowInvalid   RowStatus = "invalid"
	RowDuplicate RowStatus = "duplicate"
	RowFailed    RowStatus = "failed"
)

type RowReport struct {
	Line         int               `json:"line"`
	Workspace    string            `json:"workspace"`
	Client       string            `json:"client"`
	Status       RowStatus         `json:"status"`
	NewWorkspace bool              `json:"new_workspace,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
}

type ImportReport struct {
	DryRun            bool        `json:"dry_run"`
	Total             int         `json:"total"`
	Created           int         `json:"created"`
	WorkspacesCreated int         `json:"workspaces_created"`
	Invalid           int         `json:"invalid"`
	Duplicates        int         `json:"duplicates"`
	Failed            int         `json:"failed"`
	Rows              []RowReport `json:"rows"`
}

type ImportService struct {
	repo client.Repository
	bus  eventbus.EventBus
	now  func() time.Time
}

func NewImportService(repo client.Repository, bus eventbus.EventBus) *ImportService {
	return &ImportService{repo: repo, bus: bus, now: time.Now}
}

// Template returns an empty import file with the header row only.
func (s *ImportService) Template() []byte {
	return csvio.Serialize(importrow.Header(), nil)
}

// Import parses r and creates one client per valid row, creating workspaces
// by name as needed. Row problems are reported per row and do not stop the
// import. With dryRun nothing is written.
func (s *ImportService) Import(ctx context.Context, r io.Reader, dryRun bool) (ImportReport, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return ImportReport{}, err
	}
	ctx, span := tracer.Start(ctx, "clients.import")
	defer span.End()

	rows, err := importrow.Parse(r)
	if err != nil {
		return ImportReport{}, fmt.Errorf("parse import file: %w", err)
	}
	if len(rows) == 0 {
		return ImportReport{}, ErrEmptyImport
	}
	span.SetAttributes(attribute.Int("import.rows", len(rows)), attribute.Bool("import.dry_run", dryRun))

	run := &importRun{
		svc:        s,
		tenantID:   tenantID,
		dryRun:     dryRun,
		workspaces: map[string]client.Workspace{},
		planned:    map[string]bool{},
		seen:       map[string]struct{}{},
	}
	report := ImportReport{DryRun: dryRun, Total: len(rows), Rows: make([]RowReport, 0, len(rows))}
	for _, row := range rows {
		rr := run.importRow(ctx, row)
		recordImportRow(rr.Status)
		switch rr.Status {
		case RowCreated:
			report.Created++
		case RowInvalid:
			report.Invalid++
		case RowDuplicate:
			report.Duplicates++
		case RowFailed:
			report.Failed++
		}
		report.Rows = append(report.Rows, rr)
	}
	report.WorkspacesCreated = run.workspacesCreated

	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"component":  "clients.import",
		"tenant_id":  tenantID,
		"dry_run":    dryRun,
		"total":      report.Total,
		"created":    report.Created,
		"invalid":    report.Invalid,
		"duplicates": report.Duplicates,
		"failed":     report.Failed,
	}).Info("client import finished")

	if !dryRun && report.Created > 0 {
		s.bus.Publish(&client.ImportedEvent{
			TenantID:          tenantID,
			Created:           report.Created,
			WorkspacesCreated: report.WorkspacesCreated,
			Failed:            report.Failed,
			At:                s.now(),
		})
	}
	return report, nil
}

type importRun struct {
	svc               *ImportService
	tenantID          uuid.UUID
	dryRun            bool
	workspaces        map[string]client.Workspace
	planned           map[string]bool
	seen              map[string]struct{}
	workspacesCreated int
}

func (run *importRun) importRow(ctx context.Context, row importrow.Row) RowReport {
	wsName := row.WorkspaceName
	if wsName == "" {
		wsName = DefaultWorkspaceName
	}
	rr := RowReport{Line: row.Line, Workspace: wsName, Client: row.ClientName}

	errs, ok := row.Ok()
	driveID := ""
	if row.DriveFolder != "" {
		id, found := drivelink.ExtractFolderID(row.DriveFolder)
		if !found {
			errs["drive_folder"] = "not a Google Drive folder link or id"
			ok = false
		}
		driveID = id
	}
	if !ok {
		rr.Status = RowInvalid
		rr.Errors = errs
		return rr
	}

	key := strings.ToLower(wsName) + "\x00" + strings.ToLower(row.ClientName)
	if _, dup := run.seen[key]; dup {
		rr.Status = RowDuplicate
		return rr
	}
	run.seen[key] = struct{}{}

	ws, isNew, err := run.workspace(ctx, wsName)
	if err != nil {
		return failedRow(rr, err)
	}
	rr.NewWorkspace = isNew

	if ws.ID() != uuid.Nil {
		exists, err := run.svc.repo.ExistsByName(ctx, ws.ID(), row.ClientName)
		if err != nil {
			return failedRow(rr, err)
		}
		if exists {
			rr.Status = RowDuplicate
			return rr
		}
	}

	if run.dryRun {
		rr.Status = RowValid
		return rr
	}

	if _, err := run.svc.repo.Create(ctx, client.New(run.tenantID, ws.ID(), row.Details(driveID))); err != nil {
		if errors.Is(err, client.ErrDuplicateClient) {
			rr.Status = RowDuplicate
			return rr
		}
		return failedRow(rr, err)
	}
	rr.Status = RowCreated
	return rr
}

// workspace resolves name, creating it unless this is a dry run. In a dry run
// an unknown workspace comes back with a zero id.
func (run *importRun) workspace(ctx context.Context, name string) (client.Workspace, bool, error) {
	key := strings.ToLower(name)
	if ws, ok := run.workspaces[key]; ok {
		return ws, run.planned[key], nil
	}

	ws, err := run.svc.repo.FindWorkspaceByName(ctx, name)
	switch {
	case err == nil:
		run.workspaces[key] = ws
		return ws, false, nil
	case !errors.Is(err, client.ErrWorkspaceNotFound):
		return client.Workspace{}, false, err
	}

	run.planned[key] = true
	if run.dryRun {
		run.workspaces[key] = client.Workspace{}
		run.workspacesCreated++
		return client.Workspace{}, true, nil
	}
	ws, err = run.svc.repo.CreateWorkspace(ctx, client.NewWorkspace(run.tenantID, name))
	if err != nil {
		delete(run.planned, key)
		return client.Workspace{}, false, err
	}
	run.workspaces[key] = ws
	run.workspacesCreated++
	return ws, true, nil
}

func failedRow(rr RowReport, err error) RowReport {
	rr.Status = RowFailed
	rr.Errors = map[string]string{"row": err.Error()}
	return rr
}
