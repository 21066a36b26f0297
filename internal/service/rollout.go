// Package service drives the per-device rollout workflow across a device set
// and aggregates the results into a run report.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"

	"github.com/netops-tools/aclpush/internal/authz"
	"github.com/netops-tools/aclpush/internal/backup"
	"github.com/netops-tools/aclpush/internal/domain"
	"github.com/netops-tools/aclpush/internal/events"
	"github.com/netops-tools/aclpush/internal/metrics"
	"github.com/netops-tools/aclpush/internal/render"
	"github.com/netops-tools/aclpush/internal/ruleset"
	"github.com/netops-tools/aclpush/internal/storage"
	"github.com/netops-tools/aclpush/internal/transport"
	"github.com/netops-tools/aclpush/internal/validation"
)

// Device workflow states, reported on the event stream.
const (
	stateValidating  = "validating"
	stateDryRun      = "dry_run"
	stateConnecting  = "connecting"
	stateBackingUp   = "backing_up"
	stateApplying    = "applying"
	stateVerifying   = "verifying"
	stateRollingBack = "rolling_back"
)

// Options configures a Rollout service.
type Options struct {
	// Fanout bounds how many devices are processed concurrently; 1 when
	// zero or negative.
	Fanout int
	// OpTimeout bounds each blocking device operation (connect, backup,
	// send, verify, restore). No per-op timeout when zero.
	OpTimeout time.Duration
	// Policy is the validation severity policy; DefaultPolicy when zero.
	Policy *validation.Policy
}

// RunRequest describes one rollout invocation.
type RunRequest struct {
	Devices []domain.Device `json:"devices"`
	// Rules is the shared ruleset applied to every device without an entry
	// in RulesByDevice.
	Rules         []domain.RawRule            `json:"rules,omitempty"`
	RulesByDevice map[string][]domain.RawRule `json:"rules_by_device,omitempty"`
	Mode          domain.RunMode              `json:"mode"`
	Actor         domain.Actor                `json:"actor"`
}

func (r *RunRequest) rulesFor(device domain.Device) []domain.RawRule {
	if rules, ok := r.RulesByDevice[device.ID()]; ok {
		return rules
	}
	return r.Rules
}

// Rollout validates, authorizes, and applies rulesets across a device fleet.
// Each device's workflow is independent: its own session, its own backup, its
// own outcome. One device's failure never aborts the others.
type Rollout struct {
	store     storage.Storage
	dialer    transport.Dialer
	backups   *backup.Manager
	validator *validation.Validator
	sink      events.Sink
	fanout    int
	opTimeout time.Duration
}

// NewRollout creates a rollout service.
func NewRollout(store storage.Storage, dialer transport.Dialer, sink events.Sink, opts Options) *Rollout {
	fanout := opts.Fanout
	if fanout < 1 {
		fanout = 1
	}
	policy := validation.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Rollout{
		store:     store,
		dialer:    dialer,
		backups:   backup.NewManager(store),
		validator: validation.New(policy),
		sink:      sink,
		fanout:    fanout,
		opTimeout: opts.OpTimeout,
	}
}

// Run executes one rollout and returns its report. The report is the sole
// artifact of the run: device-level failures land in outcomes, and the
// returned error is reserved for infrastructure failures (e.g. the run record
// cannot be persisted). Cancelling ctx stops scheduling new devices; devices
// already past their backup finish to applied or rolled_back.
func (r *Rollout) Run(ctx context.Context, req RunRequest) (*domain.RunReport, error) {
	if !domain.ValidMode(req.Mode) {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, req.Mode)
	}

	report := &domain.RunReport{
		RunID:     uuid.New().String(),
		Mode:      req.Mode,
		Actor:     req.Actor,
		StartedAt: time.Now(),
	}

	record := &domain.RunRecord{
		ID:        report.RunID,
		Mode:      string(req.Mode),
		ActorName: req.Actor.Name,
		ActorRole: string(req.Actor.Role),
		Status:    domain.RunStatusRunning,
		Report:    "{}",
		CreatedAt: report.StartedAt,
	}
	if err := r.store.CreateRun(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting run record: %w", err)
	}

	r.emit(domain.Event{
		Type:   domain.EventRunStarted,
		RunID:  report.RunID,
		Detail: fmt.Sprintf("mode=%s devices=%d actor=%s", req.Mode, len(req.Devices), req.Actor.Name),
	})

	// The role gate runs once per run, before any device is touched.
	outcomes := make([]domain.DeviceOutcome, len(req.Devices))
	if authErr := authz.Authorize(req.Actor, authz.ForMode(req.Mode)); authErr != nil {
		for i, device := range req.Devices {
			outcomes[i] = domain.DeviceOutcome{
				DeviceID:   device.ID(),
				Status:     domain.StatusRejected,
				Error:      authErr.Error(),
				StartedAt:  report.StartedAt,
				FinishedAt: time.Now(),
			}
		}
	} else {
		// Each worker writes only its own pre-assigned slot, so concurrent
		// outcomes never interleave and report order matches input order.
		var g errgroup.Group
		g.SetLimit(r.fanout)
		for i, device := range req.Devices {
			i, device := i, device
			g.Go(func() error {
				outcomes[i] = r.processDevice(ctx, report.RunID, device, req.rulesFor(device), req.Mode)
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Outcomes = outcomes
	report.FinishedAt = time.Now()

	result := domain.RunStatusSucceeded
	if !report.Succeeded() {
		result = domain.RunStatusFailed
	}
	metrics.RunsTotal.WithLabelValues(string(req.Mode), result).Inc()

	r.emit(domain.Event{
		Type:   domain.EventRunFinished,
		RunID:  report.RunID,
		Detail: fmt.Sprintf("result=%s %v", result, report.Counts()),
	})

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encoding run report: %w", err)
	}
	record.Status = result
	record.Report = string(reportJSON)
	record.FinishedAt = &report.FinishedAt
	// Persist with a fresh context so a canceled run still records its report.
	if err := r.store.FinishRun(context.WithoutCancel(ctx), record); err != nil {
		log.Printf("Warning: failed to persist report for run %s: %v", report.RunID, err)
	}

	return report, nil
}

// processDevice walks one device through the workflow and returns its
// outcome. All failure paths resolve into the outcome; nothing escapes.
func (r *Rollout) processDevice(ctx context.Context, runID string, device domain.Device, raw []domain.RawRule, mode domain.RunMode) (out domain.DeviceOutcome) {
	out = domain.DeviceOutcome{DeviceID: device.ID(), StartedAt: time.Now()}
	defer func() {
		out.FinishedAt = time.Now()
		metrics.DeviceOutcomesTotal.WithLabelValues(string(out.Status)).Inc()
		r.emit(domain.Event{
			Type:     domain.EventDeviceOutcome,
			RunID:    runID,
			DeviceID: device.ID(),
			Detail:   fmt.Sprintf("status=%s error=%q", out.Status, out.Error),
		})
	}()

	// A canceled run stops scheduling; devices not yet started are skipped.
	if err := ctx.Err(); err != nil {
		out.Status = domain.StatusSkipped
		out.Error = fmt.Sprintf("run canceled before device was processed: %v", err)
		return out
	}

	r.transition(runID, device.ID(), stateValidating, "")
	rules, err := ruleset.ParseRules(raw)
	if err != nil {
		out.Status = domain.StatusRejected
		out.Error = err.Error()
		return out
	}

	result := r.validator.Validate(rules)
	out.Findings = result.Findings
	if !result.Valid {
		out.Status = domain.StatusRejected
		out.Error = fmt.Sprintf("validation failed with %d error finding(s)", len(result.Errors()))
		return out
	}

	commands := render.RuleSet(rules)

	if mode == domain.ModeDryRun {
		// Simulation renders and reports; no session is opened and no
		// backup is taken.
		r.transition(runID, device.ID(), stateDryRun, fmt.Sprintf("%d command(s)", len(commands)))
		out.Status = domain.StatusDryRun
		out.Commands = commands
		return out
	}

	r.transition(runID, device.ID(), stateConnecting, "")
	dialCtx, cancel := r.opContext(ctx)
	session, err := r.dialer.Dial(dialCtx, device)
	cancel()
	if err != nil {
		out.Status = domain.StatusRejected
		out.Error = err.Error()
		return out
	}
	defer session.Close()

	r.transition(runID, device.ID(), stateBackingUp, "")
	backupCtx, cancel := r.opContext(ctx)
	snap, err := r.backups.Snapshot(backupCtx, device, runID, session)
	cancel()
	if err != nil {
		// No backup means no mutation: reject and skip the device.
		out.Status = domain.StatusRejected
		out.Error = err.Error()
		return out
	}
	out.BackupID = snap.ID

	// A taken backup always leads to applied or rolled_back, so from here on
	// run-level cancellation no longer interrupts this device.
	detached := context.WithoutCancel(ctx)

	r.transition(runID, device.ID(), stateApplying, fmt.Sprintf("%d command(s)", len(commands)))
	sendCtx, cancel := r.opContext(detached)
	err = session.Send(sendCtx, commands)
	cancel()
	if err != nil {
		return r.rollback(detached, runID, session, snap, rules, err, out)
	}

	r.transition(runID, device.ID(), stateVerifying, "")
	verifyCtx, cancel := r.opContext(detached)
	running, err := session.RunningConfig(verifyCtx)
	cancel()
	if err != nil {
		return r.rollback(detached, runID, session, snap, rules, err, out)
	}
	if mismatch := verify(device.ID(), commands, running); mismatch != nil {
		return r.rollback(detached, runID, session, snap, rules, mismatch, out)
	}

	out.Status = domain.StatusApplied
	return out
}

// rollback restores the pre-run backup after a failed apply or verification.
// A failed rollback is the one truly escalated condition: the device may be
// left in an unknown state, so it is marked on the outcome and counted
// separately.
func (r *Rollout) rollback(ctx context.Context, runID string, session transport.Session, snap *domain.Backup, rules []domain.ACLRule, cause error, out domain.DeviceOutcome) domain.DeviceOutcome {
	r.transition(runID, out.DeviceID, stateRollingBack, cause.Error())

	restoreCtx, cancel := r.opContext(ctx)
	restoreErr := r.backups.Restore(restoreCtx, session, snap, render.ACLNumbers(rules))
	cancel()

	out.Status = domain.StatusRolledBack
	out.Error = cause.Error()
	if restoreErr != nil {
		out.RollbackFailed = true
		out.Error = fmt.Sprintf("%v; rollback failed, device state unknown: %v", cause, restoreErr)
		metrics.RollbackFailuresTotal.Inc()
		r.emit(domain.Event{
			Type:     domain.EventRollbackFailed,
			RunID:    runID,
			DeviceID: out.DeviceID,
			Detail:   restoreErr.Error(),
		})
	}
	return out
}

// verify confirms every rendered line is present in the running config.
// Returns a *domain.VerificationMismatchError carrying a unified diff of
// expected against observed access-list lines, or nil when all lines landed.
func verify(deviceID string, commands []string, running string) error {
	present := make(map[string]bool)
	actual := backup.ConfigLines(running)
	for _, line := range actual {
		present[line] = true
	}

	var missing []string
	for _, cmd := range commands {
		if !present[cmd] {
			missing = append(missing, cmd)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(commands, "\n")),
		B:        difflib.SplitLines(strings.Join(actual, "\n")),
		FromFile: "intended",
		ToFile:   "running",
		Context:  3,
	})
	return &domain.VerificationMismatchError{DeviceID: deviceID, Missing: missing, Diff: diff}
}

func (r *Rollout) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *Rollout) transition(runID, deviceID, state, detail string) {
	r.emit(domain.Event{
		Type:     domain.EventDeviceTransition,
		RunID:    runID,
		DeviceID: deviceID,
		State:    state,
		Detail:   detail,
	})
}

func (r *Rollout) emit(e domain.Event) {
	e.Time = time.Now()
	r.sink.Emit(e)
}
