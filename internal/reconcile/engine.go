// Package reconcile moves a user's actual permission grants and roles to an operator's desired
// state with the fewest backend calls.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/users"
)

// ErrPartialFailure reports that at least one call of a run failed.
var ErrPartialFailure = errors.New("reconcile: partial failure")

// GrantPort issues grant reads and writes.
type GrantPort interface {
	GetGrants(ctx context.Context, userID, tenantID uuid.UUID) ([]rbac.UserPermission, error)
	Grant(ctx context.Context, userID uuid.UUID, permissionID int64, tenantID uuid.UUID, notes string) error
	Revoke(ctx context.Context, userID uuid.UUID, permissionID int64, tenantID uuid.UUID) error
}

// UserPort reads the user record and replaces its roles.
type UserPort interface {
	GetUser(ctx context.Context, id uuid.UUID) (users.User, error)
	AssignRoles(ctx context.Context, u users.User, roleIDs []int64) (users.User, error)
}

// Observer receives per-call and per-run measurements.
type Observer interface {
	ObserveCall(action, outcome string)
	ObserveRun(outcome string, elapsed time.Duration)
}

// Recorder journals finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, actor string, res Result) error
}

// Action names a backend call made by a run.
type Action string

// Actions issued by a run.
const (
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
	ActionRoles  Action = "roles"
)

// Call outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Request is the input of one run.
type Request struct {
	// User is the loaded record; its fields ride along unchanged on the role update.
	User         users.User
	TenantID     uuid.UUID
	Desired      IDSet
	DesiredRoles IDSet
	Actual       []rbac.UserPermission
	Notes        string
	Actor        string
}

// Plan is the set of calls a run will make.
type Plan struct {
	UserID   uuid.UUID `json:"userId"`
	TenantID uuid.UUID `json:"tenantId"`
	Grant    []int64   `json:"grant"`
	Revoke   []int64   `json:"revoke"`
	RoleIDs  []int64   `json:"roleIds"`
}

// Empty reports whether no grant or revoke call is needed. The role update is always sent.
func (p Plan) Empty() bool {
	return len(p.Grant) == 0 && len(p.Revoke) == 0
}

// Outcome is the result of one call.
type Outcome struct {
	Action       Action `json:"action"`
	PermissionID int64  `json:"permissionId,omitempty"`
	Err          error  `json:"-"`
	Skipped      bool   `json:"skipped,omitempty"`
}

// Status returns the outcome label.
func (o Outcome) Status() string {
	switch {
	case o.Skipped:
		return OutcomeSkipped
	case o.Err != nil:
		return OutcomeError
	default:
		return OutcomeOK
	}
}

// Result reports what a run did. Grants and User hold reloaded server state when Reloaded.
type Result struct {
	Plan      Plan
	Outcomes  []Outcome
	Grants    []rbac.UserPermission
	User      users.User
	Reloaded  bool
	ReloadErr error
	AuthErr   error
	Elapsed   time.Duration
}

// Failed returns the outcomes that did not succeed, including skipped ones.
func (r Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// RolesErr returns the error of the role update, if any.
func (r Result) RolesErr() error {
	for _, o := range r.Outcomes {
		if o.Action == ActionRoles {
			return o.Err
		}
	}
	return nil
}

// Err is nil when every call succeeded and state was reloaded. An expired session yields an
// error matching apiclient.ErrAuth; failed calls yield ErrPartialFailure joined with their causes.
func (r Result) Err() error {
	if r.AuthErr != nil {
		return fmt.Errorf("reconcile: session lost: %w", r.AuthErr)
	}
	failed := r.Failed()
	if len(failed) > 0 {
		errs := []error{fmt.Errorf("%w: %d of %d calls failed", ErrPartialFailure, len(failed), len(r.Outcomes))}
		for _, o := range failed {
			errs = append(errs, o.Err)
		}
		return errors.Join(errs...)
	}
	if r.ReloadErr != nil {
		return fmt.Errorf("reconcile: reload: %w", r.ReloadErr)
	}
	return nil
}

// Diff computes the calls that move actual to desired.
func Diff(desired, actual IDSet) (toGrant, toRevoke []int64) {
	return desired.Minus(actual), actual.Minus(desired)
}

// ActualIDs collects the permission IDs of grants.
func ActualIDs(grants []rbac.UserPermission) IDSet {
	return NewIDSet(rbac.PermissionIDs(grants)...)
}

// Engine applies plans against the backend.
type Engine struct {
	grants   GrantPort
	users    UserPort
	observer Observer
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithObserver sets the metrics sink.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithRecorder sets the run journal.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine builds an Engine.
func NewEngine(grants GrantPort, userPort UserPort, opts ...Option) *Engine {
	e := &Engine{
		grants: grants,
		users:  userPort,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan computes the calls for req without making any.
func (e *Engine) Plan(req Request) Plan {
	toGrant, toRevoke := Diff(req.Desired, ActualIDs(req.Actual))
	roleIDs := req.DesiredRoles.Sorted()
	return Plan{
		UserID:   req.User.ID,
		TenantID: req.TenantID,
		Grant:    toGrant,
		Revoke:   toRevoke,
		RoleIDs:  roleIDs,
	}
}

// Reconcile makes one call per permission to grant or revoke, then one role replacement, then
// reloads the user's grants and record. Calls run serially; a failed call does not stop the
// rest, except an expired session which ends the run. Cancellation of ctx is ignored once the
// run starts.
func (e *Engine) Reconcile(ctx context.Context, req Request) Result {
	ctx = context.WithoutCancel(ctx)
	start := e.now()
	plan := e.Plan(req)
	res := Result{Plan: plan, Outcomes: make([]Outcome, 0, len(plan.Grant)+len(plan.Revoke)+1)}

	for _, id := range plan.Grant {
		res.Outcomes = append(res.Outcomes, e.call(&res, ActionGrant, id, func() error {
			return e.grants.Grant(ctx, plan.UserID, id, plan.TenantID, req.Notes)
		}))
	}
	for _, id := range plan.Revoke {
		res.Outcomes = append(res.Outcomes, e.call(&res, ActionRevoke, id, func() error {
			return e.grants.Revoke(ctx, plan.UserID, id, plan.TenantID)
		}))
	}
	res.Outcomes = append(res.Outcomes, e.call(&res, ActionRoles, 0, func() error {
		_, err := e.users.AssignRoles(ctx, req.User, plan.RoleIDs)
		return err
	}))

	if res.AuthErr == nil {
		e.reload(ctx, &res)
	}
	res.Elapsed = e.now().Sub(start)

	runOutcome := runLabel(res)
	if e.observer != nil {
		e.observer.ObserveRun(runOutcome, res.Elapsed)
	}
	e.logger.Info("authorization reconciled",
		slog.String("user", plan.UserID.String()),
		slog.String("tenant", plan.TenantID.String()),
		slog.Int("granted", len(plan.Grant)),
		slog.Int("revoked", len(plan.Revoke)),
		slog.Int("failed", len(res.Failed())),
		slog.String("outcome", runOutcome),
		slog.Duration("elapsed", res.Elapsed),
	)
	if e.recorder != nil {
		if err := e.recorder.RecordRun(ctx, req.Actor, res); err != nil {
			e.logger.Warn("record reconciliation run", slog.Any("error", err))
		}
	}
	return res
}

func (e *Engine) call(res *Result, action Action, id int64, fn func() error) Outcome {
	out := Outcome{Action: action, PermissionID: id}
	if res.AuthErr != nil {
		out.Err = res.AuthErr
		out.Skipped = true
	} else if err := fn(); err != nil {
		out.Err = err
		if errors.Is(err, apiclient.ErrAuth) {
			res.AuthErr = err
		}
		e.logger.Warn("reconcile call failed",
			slog.String("action", string(action)),
			slog.Int64("permission_id", id),
			slog.Any("error", err),
		)
	}
	if e.observer != nil {
		e.observer.ObserveCall(string(action), out.Status())
	}
	return out
}

func (e *Engine) reload(ctx context.Context, res *Result) {
	grants, gerr := e.grants.GetGrants(ctx, res.Plan.UserID, res.Plan.TenantID)
	u, uerr := e.users.GetUser(ctx, res.Plan.UserID)
	if err := errors.Join(gerr, uerr); err != nil {
		res.ReloadErr = err
		if errors.Is(err, apiclient.ErrAuth) {
			res.AuthErr = err
		}
		return
	}
	res.Grants = grants
	res.User = u
	res.Reloaded = true
}

func runLabel(res Result) string {
	switch {
	case res.AuthErr != nil:
		return "auth"
	case len(res.Failed()) > 0:
		return "partial"
	case res.ReloadErr != nil:
		return "reload_error"
	default:
		return "ok"
	}
}
