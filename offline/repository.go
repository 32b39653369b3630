// Package offline implements the durable queue of report submissions that
// could not be sent. The whole queue is one JSON list stored under a single
// key of a storage.KeyValueStore; every mutation is a read-modify-write of
// that list.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	syncErrors "github.com/c0deZ3R0/fieldsync/errors"
	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/report"
	"github.com/c0deZ3R0/fieldsync/storage"
)

const (
	// DefaultStorageKey is the key the queue is stored under.
	DefaultStorageKey = "offline_reports"

	// MaxRetryAttempts is the number of failed submissions after which an
	// entry is no longer retried. It stays queued until removed by the user.
	MaxRetryAttempts = 3

	idPrefix = "offline_"
)

// ErrSaveFailed is the cause carried by the storage error Save returns.
var ErrSaveFailed = errors.New("failed to save report offline; storage may be full")

// Repository is the offline report queue. It is safe for concurrent use
// within one process; writers from other processes sharing the same backend
// are not coordinated.
type Repository struct {
	store  storage.KeyValueStore
	key    string
	logger *logging.Logger
	now    func() time.Time
	newID  func(time.Time) string

	// mu serialises read-modify-write cycles
	mu sync.Mutex
}

// Option configures a Repository.
type Option func(*Repository)

// WithStorageKey overrides DefaultStorageKey.
func WithStorageKey(key string) Option {
	return func(r *Repository) {
		if key != "" {
			r.key = key
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator replaces the id generator.
func WithIDGenerator(gen func(time.Time) string) Option {
	return func(r *Repository) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// New returns a Repository persisting to store.
func New(store storage.KeyValueStore, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		key:    DefaultStorageKey,
		logger: logging.WithComponent(logging.Component("offline-store")),
		now:    time.Now,
		newID:  NewID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewID returns "offline_<unix millis>_<9 random hex chars>".
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return idPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix
}

// load reads the queue. A missing key or an unparseable blob yields an
// empty list; only a failing backend is an error.
func (r *Repository) load(ctx context.Context) ([]report.PendingReport, error) {
	raw, err := r.store.Get(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var entries []report.PendingReport
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		r.logger.Warn("offline queue is corrupted, treating as empty",
			slog.String("key", r.key),
			slog.Int("bytes", len(raw)),
			slog.Any("error", err),
		)
		return nil, nil
	}
	return entries, nil
}

func (r *Repository) persist(ctx context.Context, entries []report.PendingReport) error {
	if entries == nil {
		entries = []report.PendingReport{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, r.key, string(b))
}

// Save appends a new entry for payload and returns its id. A persistence
// failure is returned as a STORAGE_FAILURE error: the report is neither
// sent nor queued.
func (r *Repository) Save(ctx context.Context, payload report.Payload, ownerID int64) (string, error) {
	if ownerID == 0 {
		return "", syncErrors.NewValidationError(syncErrors.OpSave, fmt.Errorf("owner id is required"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return "", syncErrors.NewStorageError(syncErrors.OpSave, fmt.Errorf("%w: %w", ErrSaveFailed, err))
	}

	now := r.now()
	id := r.newID(now)
	for containsID(entries, id) {
		id = r.newID(now)
	}

	entries = append(entries, report.PendingReport{
		ID:        id,
		OwnerID:   ownerID,
		Payload:   payload,
		CreatedAt: now.UTC(),
	})

	if err := r.persist(ctx, entries); err != nil {
		r.logger.LogError(ctx, err, "failed to save report offline",
			slog.Int64("owner_id", ownerID),
			slog.Int("queue_len", len(entries)-1),
		)
		return "", syncErrors.NewStorageError(syncErrors.OpSave, fmt.Errorf("%w: %w", ErrSaveFailed, err))
	}

	r.logger.Info("report queued offline",
		slog.String("local_id", id),
		slog.Int64("owner_id", ownerID),
		slog.Int64("client_id", payload.ClientID),
	)
	return id, nil
}

func containsID(entries []report.PendingReport, id string) bool {
	for _, e := range entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// ListAll returns every entry of every owner in insertion order.
func (r *Repository) ListAll(ctx context.Context) ([]report.PendingReport, error) {
	entries, err := r.load(ctx)
	if err != nil {
		return nil, syncErrors.NewStorageError(syncErrors.OpList, err)
	}
	return entries, nil
}

// ListByOwner returns the entries created by ownerID.
func (r *Repository) ListByOwner(ctx context.Context, ownerID int64) ([]report.PendingReport, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []report.PendingReport
	for _, e := range all {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

// CountByOwner returns len(ListByOwner(ownerID)).
func (r *Repository) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	entries, err := r.ListByOwner(ctx, ownerID)
	return len(entries), err
}

// Get returns the entry with id. The bool is false when it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (report.PendingReport, bool, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return report.PendingReport{}, false, err
	}
	for _, e := range all {
		if e.ID == id {
			return e, true, nil
		}
	}
	return report.PendingReport{}, false, nil
}

// Remove deletes the entry with id. Removing an absent id is not an error.
func (r *Repository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return syncErrors.NewStorageError(syncErrors.OpRemove, err)
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}

	if err := r.persist(ctx, kept); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpRemove, err)
	}
	r.logger.Debug("report removed from offline queue", slog.String("local_id", id))
	return nil
}

// RecordAttempt increments the attempt counter of id, stamps the attempt
// time and stores errMsg when it is not empty. Unknown ids are ignored.
func (r *Repository) RecordAttempt(ctx context.Context, id, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return syncErrors.NewStorageError(syncErrors.OpRecordAttempt, err)
	}

	found := false
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		now := r.now().UTC()
		entries[i].Attempts++
		entries[i].LastAttemptAt = &now
		if errMsg != "" {
			entries[i].LastError = errMsg
		}
		found = true
		break
	}
	if !found {
		return nil
	}

	if err := r.persist(ctx, entries); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpRecordAttempt, err)
	}
	return nil
}

// ShouldRetry reports whether entry is still eligible for submission.
func ShouldRetry(entry report.PendingReport) bool {
	return entry.Attempts < MaxRetryAttempts
}

// ShouldRetry reports whether entry is still eligible for submission.
func (r *Repository) ShouldRetry(entry report.PendingReport) bool {
	return ShouldRetry(entry)
}

// Stuck returns ownerID's entries that exhausted their retries and wait for
// the user to remove them.
func (r *Repository) Stuck(ctx context.Context, ownerID int64) ([]report.PendingReport, error) {
	entries, err := r.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var out []report.PendingReport
	for _, e := range entries {
		if !ShouldRetry(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
