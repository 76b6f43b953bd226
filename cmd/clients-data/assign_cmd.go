package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/modules/clients/infrastructure/persistence"
	"github.com/iota-uz/clientdesk/modules/clients/services"
	"github.com/iota-uz/clientdesk/pkg/configuration"
	"github.com/iota-uz/clientdesk/pkg/eventbus"
)

type assignOptions struct {
	tenantID uuid.UUID
	input    string
	apply    bool
	edits    matrixEdits
}

// matrixEdits are applied on top of the loaded state, after the desired file.
type matrixEdits struct {
	clients   []string
	grantAll  []string
	revokeAll []string
	toggles   []string
}

func (e matrixEdits) empty() bool {
	return len(e.grantAll) == 0 && len(e.revokeAll) == 0 && len(e.toggles) == 0
}

// parseToggle splits a "client:user" pair.
func parseToggle(raw string) (string, string, error) {
	clientID, userID, ok := strings.Cut(raw, ":")
	clientID, userID = strings.TrimSpace(clientID), strings.TrimSpace(userID)
	if !ok || clientID == "" || userID == "" {
		return "", "", withCode(exitValidation, fmt.Errorf("invalid --toggle %q (expected client:user)", raw))
	}
	return clientID, userID, nil
}

func (o *assignOptions) validate() error {
	if strings.TrimSpace(o.input) == "" && len(o.edits.clients) == 0 {
		return withCode(exitUsage, fmt.Errorf("either --input or --client is required"))
	}
	if strings.TrimSpace(o.input) == "" && o.edits.empty() {
		return withCode(exitUsage, fmt.Errorf("--client needs at least one of --grant-all, --revoke-all, --toggle"))
	}
	for _, raw := range o.edits.toggles {
		if _, _, err := parseToggle(raw); err != nil {
			return err
		}
	}
	return nil
}

type desiredFile struct {
	Desired map[string][]string `json:"desired"`
}

func readDesired(r io.Reader) (assignment.StateMap, error) {
	var f desiredFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, withCode(exitValidation, fmt.Errorf("decode desired state: %w", err))
	}
	if len(f.Desired) == 0 {
		return nil, withCode(exitValidation, services.ErrEmptyDesiredState)
	}
	lists := make(map[string][]string, len(f.Desired))
	for clientID, users := range f.Desired {
		clientID = strings.TrimSpace(clientID)
		if clientID == "" {
			return nil, withCode(exitValidation, fmt.Errorf("desired state contains a blank client id"))
		}
		lists[clientID] = append(lists[clientID], users...)
	}
	return assignment.FromLists(lists), nil
}

func newAssignCmd() *cobra.Command {
	var opts assignOptions

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Reconcile client assignments with a desired state JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			var desired assignment.StateMap
			if strings.TrimSpace(opts.input) != "" {
				f, err := openInput(opts.input)
				if err != nil {
					return err
				}
				desired, err = readDesired(f)
				_ = f.Close()
				if err != nil {
					return err
				}
			}

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return withCode(exitDB, err)
			}
			defer pool.Close()

			conf := configuration.Use()
			logger := conf.Logger().WithField("component", "clients-data")
			repo := persistence.NewAssignmentRepository()
			svc := services.NewAssignmentService(
				services.NewStateLoader(repo, services.LoaderOptions{
					ChunkSize:  conf.Clients.ReadChunkSize,
					PageSize:   conf.Clients.ReadPageSize,
					ChunkDelay: conf.Clients.ReadChunkDelay,
					Logger:     logger,
				}),
				services.NewBatchExecutor(repo, services.ExecutorOptions{
					MaxInFlight: conf.Clients.MaxInFlight,
					Logger:      logger,
				}),
				eventbus.NewEventPublisher(conf.Logger()),
			)
			ctx := tenantContext(cmd.Context(), pool, opts.tenantID)
			return runAssign(ctx, opts, svc, desired, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", `JSON file of the form {"desired": {"<client id>": ["<user id>", ...]}}`)
	cmd.Flags().StringSliceVar(&opts.edits.clients, "client", nil, "Client ids to edit in addition to those in --input")
	cmd.Flags().StringSliceVar(&opts.edits.grantAll, "grant-all", nil, "User ids to assign to every edited client")
	cmd.Flags().StringSliceVar(&opts.edits.revokeAll, "revoke-all", nil, "User ids to remove from every edited client")
	cmd.Flags().StringSliceVar(&opts.edits.toggles, "toggle", nil, "client:user pairs whose assignment is flipped")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Execute the plan (default prints it)")
	addTenantFlag(cmd, &opts.tenantID)
	return cmd
}

type assignSummary struct {
	Status  string                   `json:"status"`
	Plan    []assignment.EntityDelta `json:"plan"`
	Adds    int                      `json:"adds"`
	Removes int                      `json:"removes"`
	Batch   *services.BatchResult    `json:"batch,omitempty"`
	State   map[string][]string      `json:"state,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// openSession loads the state of every client named by desired or the edits
// and replays desired and the edits on an edit session over it.
func openSession(ctx context.Context, svc *services.AssignmentService, desired assignment.StateMap, edits matrixEdits) (*assignment.Matrix, error) {
	ids := assignment.NewIDSet(desired.ClientIDs()...)
	for _, clientID := range edits.clients {
		ids.Add(clientID)
	}
	for _, raw := range edits.toggles {
		clientID, _, err := parseToggle(raw)
		if err != nil {
			return nil, err
		}
		ids.Add(clientID)
	}
	if ids.Len() == 0 {
		return nil, withCode(exitValidation, services.ErrEmptyDesiredState)
	}

	existing, err := svc.Load(ctx, ids.Sorted())
	if err != nil {
		return nil, withCode(exitDB, err)
	}
	session := assignment.NewMatrix(existing)
	for clientID, users := range desired {
		session.Set(clientID, users.Sorted()...)
	}
	for _, userID := range edits.grantAll {
		session.GrantToAll(userID)
	}
	for _, userID := range edits.revokeAll {
		session.RevokeFromAll(userID)
	}
	for _, raw := range edits.toggles {
		clientID, userID, _ := parseToggle(raw)
		session.Toggle(clientID, userID)
	}
	return session, nil
}

func runAssign(ctx context.Context, opts assignOptions, svc *services.AssignmentService, desired assignment.StateMap, out io.Writer) error {
	session, err := openSession(ctx, svc, desired, opts.edits)
	if err != nil {
		return err
	}

	if !opts.apply {
		plan := session.Pending()
		adds, removes := assignment.Totals(plan)
		return writeJSONLine(out, assignSummary{Status: "dry_run", Plan: plan, Adds: adds, Removes: removes})
	}

	result, err := svc.Save(ctx, session.Snapshot())
	if err != nil && result.State == nil {
		return withCode(exitDB, err)
	}
	adds, removes := assignment.Totals(result.Plan)
	summary := assignSummary{
		Status:  "applied",
		Plan:    result.Plan,
		Adds:    adds,
		Removes: removes,
		Batch:   &result.Batch,
		State:   result.State.Lists(),
	}
	if err != nil {
		summary.Status = "partial"
		summary.Error = err.Error()
	}
	if werr := writeJSONLine(out, summary); werr != nil {
		return werr
	}
	if err != nil {
		return withCode(exitDBWrite, err)
	}
	return nil
}
