package synckit

import (
	"context"
	"log/slog"

	syncErrors "github.com/c0deZ3R0/fieldsync/errors"
	"github.com/c0deZ3R0/fieldsync/offline"
	"github.com/c0deZ3R0/fieldsync/report"
)

// SubmitOutcome describes what happened to a report handed to SubmitOrQueue.
type SubmitOutcome struct {
	// Submitted is true when the server accepted the report; ServerID is set.
	Submitted bool
	ServerID  int64

	// Queued is true when the report was saved offline; LocalID is set and
	// Reason says why it was not submitted directly.
	Queued  bool
	LocalID string
	Reason  string

	// Duplicates is the advisory local duplicate check done before anything
	// else.
	Duplicates offline.DuplicateReport
}

// SubmitOrQueue tries to submit payload directly and falls back to the
// offline queue when the server is unreachable or the submission fails for
// any reason. The only error returned is a failure to queue.
func (e *Engine) SubmitOrQueue(ctx context.Context, ownerID int64, payload report.Payload) (SubmitOutcome, error) {
	var out SubmitOutcome
	logger := e.logger.With(slog.Int64("owner_id", ownerID), slog.Int64("client_id", payload.ClientID))

	dupes, err := e.queue.FindDuplicates(ctx, ownerID, payload.ClientID, payload.DateOfService, payload.ReportType, "")
	if err != nil {
		logger.Warn("duplicate check failed", slog.Any("error", err))
	} else {
		out.Duplicates = dupes
		if dupes.HasDuplicates {
			logger.Warn("similar report already queued offline", slog.Int("count", dupes.Count))
		}
	}

	if !e.prober.Probe(ctx, e.probeTimeout) {
		out.Reason = "server unreachable"
		return e.queueReport(ctx, ownerID, payload, out)
	}

	res := e.submitOne(ctx, ownerID, report.PendingReport{Payload: payload})
	if res.Success {
		out.Submitted = true
		out.ServerID = res.ServerID
		logger.Info("report submitted", slog.Int64("server_id", res.ServerID))
		return out, nil
	}

	logger.Warn("submission failed, saving offline", slog.String("error", res.Error))
	out.Reason = res.Error
	return e.queueReport(ctx, ownerID, payload, out)
}

// queueReport saves payload even when ctx is already done: the report
// must not be lost because the caller stopped waiting.
func (e *Engine) queueReport(ctx context.Context, ownerID int64, payload report.Payload, out SubmitOutcome) (SubmitOutcome, error) {
	saveCtx, cancel := bookkeepingContext(ctx)
	defer cancel()

	id, err := e.queue.Save(saveCtx, payload, ownerID)
	if err != nil {
		e.metrics.RecordSyncErrors("submit", "queue_write")
		e.notifier.Notify(ctx, Notification{Level: LevelError, Message: offline.ErrSaveFailed.Error()})
		return out, syncErrors.E(syncErrors.OpSubmit, syncErrors.Component("sync-engine"), err)
	}
	out.Queued = true
	out.LocalID = id
	e.notifier.Notify(ctx, queuedNotice())
	return out, nil
}
