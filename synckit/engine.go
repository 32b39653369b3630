// Package synckit drains the offline report queue against the server.
//
// An Engine owns the "is syncing" state: a Run started while another is in
// progress returns immediately with no results. Within a run, entries are
// submitted one at a time, oldest first; a failing entry never stops the
// others. Listeners registered with OnSyncComplete receive every run's
// results, whether or not the run was interactive.
package synckit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	syncErrors "github.com/c0deZ3R0/fieldsync/errors"
	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/offline"
	"github.com/c0deZ3R0/fieldsync/pubsub"
	"github.com/c0deZ3R0/fieldsync/report"
)

// Queue is the part of the offline repository the engine uses.
// *offline.Repository implements it.
type Queue interface {
	Save(ctx context.Context, payload report.Payload, ownerID int64) (string, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]report.PendingReport, error)
	Remove(ctx context.Context, id string) error
	RecordAttempt(ctx context.Context, id, errMsg string) error
	ShouldRetry(entry report.PendingReport) bool
	FindDuplicates(ctx context.Context, ownerID, clientID int64, serviceDate, reportType, excludeID string) (offline.DuplicateReport, error)
}

// ReportSubmitter sends one report to the server. *httpapi.Client
// implements it.
type ReportSubmitter interface {
	CreateReport(ctx context.Context, ownerID int64, payload report.Payload) (report.CreateResult, error)
}

// Prober gates runs on server reachability. *connectivity.Prober
// implements it.
type Prober interface {
	Probe(ctx context.Context, timeout time.Duration) bool
	AddNetworkListener(onOnline, onOffline func()) (unsubscribe func())
}

var _ Queue = (*offline.Repository)(nil)

// Engine runs sync passes over the offline queue.
type Engine struct {
	queue     Queue
	submitter ReportSubmitter
	prober    Prober

	running atomic.Bool
	results *pubsub.Emitter[[]report.SyncResult]

	logger        *logging.Logger
	notifier      Notifier
	metrics       MetricsCollector
	settleDelay   time.Duration
	submitTimeout time.Duration
	probeTimeout  time.Duration
}

// NewEngine wires an Engine. All three collaborators are required.
func NewEngine(queue Queue, submitter ReportSubmitter, prober Prober, opts ...Option) (*Engine, error) {
	switch {
	case queue == nil:
		return nil, syncErrors.E(syncErrors.Op("synckit.NewEngine"), syncErrors.Component("synckit"), syncErrors.KindInvalid, "queue is required")
	case submitter == nil:
		return nil, syncErrors.E(syncErrors.Op("synckit.NewEngine"), syncErrors.Component("synckit"), syncErrors.KindInvalid, "report submitter is required")
	case prober == nil:
		return nil, syncErrors.E(syncErrors.Op("synckit.NewEngine"), syncErrors.Component("synckit"), syncErrors.KindInvalid, "prober is required")
	}

	e := &Engine{
		queue:         queue,
		submitter:     submitter,
		prober:        prober,
		logger:        logging.WithComponent(logging.Component("sync-engine")),
		metrics:       &NoOpMetricsCollector{},
		settleDelay:   DefaultSettleDelay,
		submitTimeout: DefaultSubmitTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = LogNotifier{Logger: e.logger}
	}
	e.results = pubsub.New[[]report.SyncResult](e.logger)
	return e, nil
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// OnSyncComplete registers fn to receive the results of every run that
// reached the queue. A panicking listener does not affect the others.
func (e *Engine) OnSyncComplete(fn func([]report.SyncResult)) (unsubscribe func()) {
	return e.results.Subscribe(fn)
}

// Run drains ownerID's queue once. notify controls interactive
// notifications only.
//
// The returned slice is empty, never nil, when the run was skipped: another
// run was in progress, the server was unreachable, or the queue was empty.
// Entries that exhausted their retries are skipped and do not appear in the
// results. An error is returned only when the queue itself cannot be read or
// ctx ends mid-run; per-entry failures are reported in the results.
func (e *Engine) Run(ctx context.Context, ownerID int64, notify bool) ([]report.SyncResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Debug("sync already in progress, skipping", slog.Int64("owner_id", ownerID))
		return []report.SyncResult{}, nil
	}
	defer e.running.Store(false)

	start := time.Now()
	runID := uuid.NewString()
	ctx = logging.ContextWithRun(logging.ContextWithOwner(ctx, ownerID), runID)
	logger := e.logger.WithContext(ctx)

	if !e.prober.Probe(ctx, e.probeTimeout) {
		logger.Info("server unreachable, sync deferred")
		if notify {
			e.notifier.Notify(ctx, noConnectionNotice())
		}
		return []report.SyncResult{}, nil
	}

	pending, err := e.queue.ListByOwner(ctx, ownerID)
	if err != nil {
		e.metrics.RecordSyncErrors("sync", "queue_read")
		logger.LogError(ctx, err, "failed to read offline queue")
		return nil, syncErrors.E(syncErrors.OpSync, syncErrors.Component("sync-engine"), err)
	}
	e.metrics.RecordQueueDepth(ownerID, len(pending))
	if len(pending) == 0 {
		logger.Debug("offline queue is empty")
		return []report.SyncResult{}, nil
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	eligible := 0
	for _, entry := range pending {
		if e.queue.ShouldRetry(entry) {
			eligible++
		}
	}
	skipped := len(pending) - eligible

	if notify && eligible > 0 {
		e.notifier.Notify(ctx, progressNotice(eligible))
	}
	logger.Info("sync started", slog.Int("pending", len(pending)), slog.Int("eligible", eligible))

	results := make([]report.SyncResult, 0, eligible)
	var runErr error
	for _, entry := range pending {
		if !e.queue.ShouldRetry(entry) {
			logger.Trace(ctx, "skipping entry that exhausted its retries",
				slog.String("local_id", entry.ID),
				slog.Int("attempts", entry.Attempts),
			)
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		res := e.submitOne(ctx, ownerID, entry)
		if !res.Success && ctx.Err() != nil {
			// the caller gave up; this attempt does not count against the entry
			runErr = ctx.Err()
			break
		}
		results = append(results, res)
		e.settle(ctx, logger, entry, res)
	}

	s := report.Summarize(results)
	e.metrics.RecordSubmissions(s.Succeeded, s.Failed, skipped)
	e.metrics.RecordSyncDuration("sync", time.Since(start))

	if notify {
		if n, ok := summaryNotice(results); ok {
			e.notifier.Notify(ctx, n)
		} else if skipped > 0 && runErr == nil {
			e.notifier.Notify(ctx, stuckNotice(skipped))
		}
	}

	logger.Info("sync finished",
		slog.Int("succeeded", s.Succeeded),
		slog.Int("failed", s.Failed),
		slog.Int("skipped", skipped),
		slog.Duration("duration", time.Since(start)),
	)

	e.results.Emit(results)

	if runErr != nil {
		e.metrics.RecordSyncErrors("sync", "cancelled")
		return results, syncErrors.E(syncErrors.OpSync, syncErrors.Component("sync-engine"), runErr, "run interrupted")
	}
	return results, nil
}

// submitOne makes the single attempt an entry gets in a run. A panicking
// submitter counts as a failed attempt.
func (e *Engine) submitOne(ctx context.Context, ownerID int64, entry report.PendingReport) (res report.SyncResult) {
	res.LocalID = entry.ID

	ctx, cancel := context.WithTimeout(ctx, e.submitTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res = report.SyncResult{LocalID: entry.ID, Error: fmt.Sprintf("submission panicked: %v", r)}
		}
	}()

	out, err := e.submitter.CreateReport(ctx, ownerID, entry.Payload)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || (err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)):
		res.Error = fmt.Sprintf("request timed out after %s", e.submitTimeout)
	case err != nil:
		res.Error = err.Error()
	case !out.Success:
		res.Error = out.Message
		if res.Error == "" {
			res.Error = "server rejected the report"
		}
	case out.ReportID == 0:
		res.Error = "server did not return a report id"
	default:
		res.Success = true
		res.ServerID = out.ReportID
	}
	return res
}

// bookkeepingTimeout bounds queue writes that must outlive the caller's ctx.
const bookkeepingTimeout = 10 * time.Second

func bookkeepingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

// settle applies a result to the queue: remove on success, count the
// attempt on failure. It runs even when ctx was cancelled after the server
// answered, bounded by bookkeepingTimeout. Queue errors are logged; the
// result stands.
func (e *Engine) settle(ctx context.Context, logger *logging.Logger, entry report.PendingReport, res report.SyncResult) {
	ctx, cancel := bookkeepingContext(ctx)
	defer cancel()

	if res.Success {
		if err := e.queue.Remove(ctx, entry.ID); err != nil {
			logger.LogError(ctx, err, "report was accepted but could not be removed from the queue",
				slog.String("local_id", entry.ID),
				slog.Int64("server_id", res.ServerID),
			)
			return
		}
		logger.Info("report synced",
			slog.String("local_id", entry.ID),
			slog.Int64("server_id", res.ServerID),
		)
		return
	}

	if err := e.queue.RecordAttempt(ctx, entry.ID, res.Error); err != nil {
		logger.LogError(ctx, err, "failed to record sync attempt", slog.String("local_id", entry.ID))
	}
	logger.Warn("report sync failed",
		slog.String("local_id", entry.ID),
		slog.Int("attempt", entry.Attempts+1),
		slog.String("error", res.Error),
	)
}
