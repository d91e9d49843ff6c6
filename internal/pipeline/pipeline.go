// Package pipeline runs one digest: check the credential, collect tasks,
// build the digest and deliver it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Jayphen/dida-digest/internal/auth"
	"github.com/Jayphen/dida-digest/internal/digest"
	"github.com/Jayphen/dida-digest/internal/logging"
	"github.com/Jayphen/dida-digest/internal/metrics"
	"github.com/Jayphen/dida-digest/internal/notify"
	"github.com/Jayphen/dida-digest/internal/redis"
	"github.com/Jayphen/dida-digest/internal/tasksource"
	"github.com/google/uuid"
)

// Run outcomes, used for Result.Status, metrics and run records.
const (
	StatusDelivered = "delivered"
	StatusSkipped   = "skipped"
	StatusDryRun    = "dry_run"
	StatusReminded  = "reminded"
	StatusFailed    = "failed"
)

// ErrSourceUnavailable is returned when neither the project listing nor the
// inbox could be read, so there is nothing meaningful to send.
var ErrSourceUnavailable = errors.New("task source unavailable")

// Recorder stores a summary of each run.
type Recorder interface {
	SetRun(ctx context.Context, rec *redis.RunRecord) error
}

// Runner holds the collaborators for digest runs. It can be reused.
type Runner struct {
	// Tokens is checked before anything is fetched. Nil skips the check,
	// for sources that need no credential.
	Tokens auth.TokenProvider

	Source   tasksource.TaskSource
	Notifier notify.Notifier

	// Reminder receives auth.ReminderText when no credential is available.
	// Nil means Notifier.
	Reminder notify.Notifier

	// Recorder is optional.
	Recorder Recorder

	Log      *logging.Logger
	Now      func() time.Time
	Location *time.Location

	// SkipEmpty suppresses delivery when no task qualified.
	SkipEmpty bool

	// DryRun builds the digest without delivering it.
	DryRun bool
}

// Result describes one run.
type Result struct {
	RunID    string
	Status   string
	Digest   digest.Digest
	Stats    digest.CollectStats
	Started  time.Time
	Finished time.Time
	Err      error
}

// Delivered reports whether the digest was sent.
func (r *Result) Delivered() bool {
	return r.Status == StatusDelivered
}

// Skipped reports whether an empty digest was not sent.
func (r *Result) Skipped() bool {
	return r.Status == StatusSkipped
}

// Record converts the result for storage.
func (r *Result) Record() *redis.RunRecord {
	rec := &redis.RunRecord{
		RunID:     r.RunID,
		Timestamp: r.Finished.UnixMilli(),
		Status:    r.Status,
		Counts:    r.Digest.Counts(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

func (r *Runner) now() time.Time {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	if r.Location != nil {
		now = now.In(r.Location)
	}
	return now
}

// Run performs one digest run. The returned Result is never nil.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Started: r.now()}

	log := r.Log
	if log == nil {
		log = logging.Get()
	}
	log = log.WithRun(res.RunID)

	err := r.run(ctx, log, res)
	res.Err = err
	res.Finished = r.now()
	if err != nil && res.Status == "" {
		res.Status = StatusFailed
	}

	metrics.RecordRun(res.Status, res.Finished.Sub(res.Started), res.Finished)
	if r.Recorder != nil {
		if rerr := r.Recorder.SetRun(ctx, res.Record()); rerr != nil {
			log.WithError(rerr).Warn("failed to record run")
		}
	}

	ev := log.WithField("status", res.Status).WithFields(countFields(res.Digest))
	if err != nil {
		ev.WithError(err).Error("digest run failed")
	} else {
		ev.Info("digest run finished")
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, log *logging.Logger, res *Result) error {
	if r.Source == nil {
		return fmt.Errorf("no task source configured")
	}
	if r.Notifier == nil && !r.DryRun {
		return fmt.Errorf("no notifier configured")
	}

	if r.Tokens != nil {
		if _, err := r.Tokens.Token(ctx); err != nil {
			if errors.Is(err, auth.ErrNoCredential) {
				res.Status = StatusReminded
				r.remind(ctx, log)
			}
			return err
		}
	}

	tasks, stats := digest.Collect(ctx, r.Source, log)
	res.Stats = stats
	recordCollect(stats)

	if err := ctx.Err(); err != nil {
		return err
	}
	if stats.ListFailed && stats.InboxFailed {
		return fmt.Errorf("%w: project listing and inbox both failed", ErrSourceUnavailable)
	}

	res.Digest = digest.Build(tasks, r.now())
	metrics.RecordBuckets(res.Digest.Counts())

	switch {
	case r.DryRun:
		res.Status = StatusDryRun
		return nil
	case res.Digest.Empty() && r.SkipEmpty:
		res.Status = StatusSkipped
		log.Info("no pending tasks, skipping delivery")
		return nil
	}

	text := res.Digest.Text
	if res.Digest.Empty() {
		// Nothing qualified; send the empty marker so the chat still sees a run.
		text = strings.TrimSpace(res.Digest.TodayBlock)
	}

	start := time.Now()
	err := r.Notifier.Deliver(ctx, text)
	metrics.RecordDelivery(err, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to deliver digest: %w", err)
	}

	res.Status = StatusDelivered
	return nil
}

// remind pushes the re-authorization reminder. Failures are logged only.
func (r *Runner) remind(ctx context.Context, log *logging.Logger) {
	target := r.Reminder
	if target == nil {
		target = r.Notifier
	}
	if target == nil || r.DryRun {
		log.Warn("no credential available; reminder not sent")
		return
	}

	if err := target.Deliver(ctx, auth.ReminderText); err != nil {
		log.WithError(err).Warn("failed to send authorization reminder")
		return
	}
	log.Info("authorization reminder sent")
}

func recordCollect(stats digest.CollectStats) {
	if stats.ListFailed {
		metrics.IncrementFetchFailures("list_projects", 1)
	}
	if stats.InboxFailed {
		metrics.IncrementFetchFailures("inbox", 1)
	}
	metrics.IncrementFetchFailures("project", stats.FailedProjects)
	metrics.IncrementDuplicates(stats.DuplicateTasks)
}

func countFields(d digest.Digest) map[string]interface{} {
	fields := make(map[string]interface{}, 3)
	for k, v := range d.Counts() {
		fields[k] = v
	}
	return fields
}
