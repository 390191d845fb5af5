// Package syncengine keeps the Local Store and the Remote Store converging.
// Every interval it pushes each dataset through /data/sync and applies the
// server's last-write-wins verdict; failures park the dataset in a pending
// set that is retried when connectivity returns.
package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"productive-cloud/internal/domain"
	"productive-cloud/internal/transport"

	"go.uber.org/zap"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultFlushBudget = 2 * time.Second
)

// Store is the slice of the Local Store the engine needs.
type Store interface {
	Get(ctx context.Context, dataType string) (json.RawMessage, bool, error)
	Put(ctx context.Context, dataType string, value json.RawMessage) error
	LastSync(ctx context.Context, dataType string) (*time.Time, error)
	SetLastSync(ctx context.Context, dataType string, at time.Time) error
	LastSyncs(ctx context.Context) (map[string]time.Time, error)
}

// Remote is the slice of the transport the engine needs.
type Remote interface {
	Sync(ctx context.Context, dataType domain.DataType, data json.RawMessage, lastSync *time.Time) (*domain.SyncResponse, error)
	FetchAll(ctx context.Context) (*domain.AllDataResponse, error)
	Ping(ctx context.Context) error
}

// UpdateListener is told when a dataset was replaced by a newer remote copy.
type UpdateListener func(dataType domain.DataType, data json.RawMessage)

type Config struct {
	// Enabled is false when no backend is configured; Run and Flush then do nothing.
	Enabled     bool
	Interval    time.Duration
	FlushBudget time.Duration
	DataTypes   []domain.DataType
}

type Engine struct {
	store  Store
	remote Remote
	logger *zap.Logger
	cfg    Config

	inFlight atomic.Bool
	online   atomic.Bool

	mu        sync.Mutex
	pending   map[domain.DataType]struct{}
	listeners []UpdateListener
	nextSync  time.Time

	intervalCh chan time.Duration
	now        func() time.Time
}

func New(store Store, remote Remote, cfg Config, logger *zap.Logger) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FlushBudget <= 0 {
		cfg.FlushBudget = DefaultFlushBudget
	}
	if len(cfg.DataTypes) == 0 {
		cfg.DataTypes = domain.DataTypes()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		store:      store,
		remote:     remote,
		logger:     logger.Named("sync"),
		cfg:        cfg,
		pending:    make(map[domain.DataType]struct{}),
		intervalCh: make(chan time.Duration, 1),
		now:        time.Now,
	}
	e.online.Store(true)
	return e
}

func (e *Engine) OnUpdate(l UpdateListener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

func (e *Engine) notify(dt domain.DataType, data json.RawMessage) {
	e.mu.Lock()
	listeners := append([]UpdateListener(nil), e.listeners...)
	e.mu.Unlock()

	for _, l := range listeners {
		l(dt, data)
	}
}

func (e *Engine) addPending(dt domain.DataType) {
	e.mu.Lock()
	e.pending[dt] = struct{}{}
	e.mu.Unlock()
}

func (e *Engine) clearPending(dt domain.DataType) {
	e.mu.Lock()
	delete(e.pending, dt)
	e.mu.Unlock()
}

// Pending returns the datasets waiting for a retry, sorted.
func (e *Engine) Pending() []domain.DataType {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.DataType, 0, len(e.pending))
	for dt := range e.pending {
		out = append(out, dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SyncDataType reconciles one dataset with the server. Without force a
// dataset that has no local copy is skipped and the returned action is
// empty. Any failure other than a missing credential parks the dataset in
// the pending set.
func (e *Engine) SyncDataType(ctx context.Context, dt domain.DataType, force bool) (domain.SyncAction, error) {
	key := string(dt)
	log := e.logger.With(zap.String("data_type", key))

	data, ok, err := e.store.Get(ctx, key)
	if err != nil {
		log.Error("read local data", zap.Error(err))
		e.addPending(dt)
		return "", err
	}
	if !ok {
		if !force {
			log.Debug("no local data, skipping")
			return "", nil
		}
		data = json.RawMessage(`{}`)
	}

	lastSync, err := e.store.LastSync(ctx, key)
	if err != nil {
		log.Warn("read last sync, treating as never synced", zap.Error(err))
		lastSync = nil
	}

	resp, err := e.remote.Sync(ctx, dt, data, lastSync)
	if err != nil {
		if errors.Is(err, transport.ErrUnauthenticated) {
			return "", err
		}
		log.Warn("sync failed, queued for retry", zap.Error(err))
		if ok {
			e.addPending(dt)
		}
		return "", err
	}

	switch resp.Action {
	case domain.ActionUpdated:
		if err := e.store.Put(ctx, key, resp.Data); err != nil {
			log.Error("store remote data", zap.Error(err))
			e.addPending(dt)
			return "", err
		}
		log.Info("local data replaced by newer remote copy", zap.Int64("version", resp.Version))
		e.notify(dt, resp.Data)
	case domain.ActionSynced:
		log.Info("local data pushed", zap.Int64("version", resp.Version))
	case domain.ActionCreated:
		log.Info("remote dataset created")
	}

	if err := e.store.SetLastSync(ctx, key, resp.Timestamp); err != nil {
		log.Error("record last sync", zap.Error(err))
	}
	e.clearPending(dt)
	return resp.Action, nil
}

// SkipReason says why a whole pass did not run.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipInFlight        SkipReason = "in_flight"
	SkipUnauthenticated SkipReason = "unauthenticated"
)

type Result struct {
	DataType domain.DataType
	Action   domain.SyncAction // empty when skipped or failed
	Err      error
}

type Report struct {
	Skipped SkipReason
	Results []Result
}

func (r Report) Failed() []domain.DataType {
	var out []domain.DataType
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res.DataType)
		}
	}
	return out
}

// SyncAll runs one pass over every dataset. A pass already in flight makes
// an unforced call a no-op. One dataset failing never stops the others.
func (e *Engine) SyncAll(ctx context.Context, force bool) Report {
	if force {
		e.inFlight.Store(true)
	} else if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Debug("sync already in progress, skipping")
		return Report{Skipped: SkipInFlight}
	}
	defer e.inFlight.Store(false)

	return e.pass(ctx, e.cfg.DataTypes, force)
}

func (e *Engine) pass(ctx context.Context, types []domain.DataType, force bool) Report {
	var report Report
	for _, dt := range types {
		action, err := e.SyncDataType(ctx, dt, force)
		if errors.Is(err, transport.ErrUnauthenticated) {
			e.logger.Debug("not authenticated, skipping sync")
			report.Skipped = SkipUnauthenticated
			report.Results = nil
			return report
		}
		report.Results = append(report.Results, Result{DataType: dt, Action: action, Err: err})
	}

	if failed := report.Failed(); len(failed) > 0 {
		e.logger.Warn("sync pass finished with failures", zap.Int("failed", len(failed)))
	} else {
		e.logger.Debug("sync pass finished", zap.Int("data_types", len(report.Results)))
	}
	return report
}

// SyncPending retries every pending dataset.
func (e *Engine) SyncPending(ctx context.Context) Report {
	pending := e.Pending()
	if len(pending) == 0 {
		return Report{}
	}
	e.logger.Info("retrying pending data types", zap.Int("count", len(pending)))
	return e.pass(ctx, pending, true)
}

// ForceSync reconciles one dataset regardless of a pass in flight.
func (e *Engine) ForceSync(ctx context.Context, dt domain.DataType) error {
	_, err := e.SyncDataType(ctx, dt, true)
	return err
}

func (e *Engine) ForceSyncAll(ctx context.Context) Report {
	return e.SyncAll(ctx, true)
}

// CheckForUpdates pulls every remote dataset that changed after this
// device last synced it and returns the datasets it replaced.
func (e *Engine) CheckForUpdates(ctx context.Context) ([]domain.DataType, error) {
	if !e.online.Load() {
		return nil, nil
	}

	all, err := e.remote.FetchAll(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrUnauthenticated) {
			return nil, nil
		}
		e.logger.Warn("check for updates failed", zap.Error(err))
		return nil, err
	}

	types := make([]domain.DataType, 0, len(all.Data))
	for dt := range all.Data {
		types = append(types, dt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var updated []domain.DataType
	for _, dt := range types {
		entry := all.Data[dt]
		key := string(dt)

		last, err := e.store.LastSync(ctx, key)
		if err != nil {
			return updated, err
		}
		if last != nil && !last.Before(entry.LastModified) {
			continue
		}

		if err := e.store.Put(ctx, key, entry.Data); err != nil {
			return updated, err
		}
		if err := e.store.SetLastSync(ctx, key, entry.LastModified); err != nil {
			return updated, err
		}
		e.logger.Info("pulled remote update", zap.String("data_type", key), zap.Int64("version", entry.Version))
		e.notify(dt, entry.Data)
		updated = append(updated, dt)
	}
	return updated, nil
}

// SetOnline records connectivity. Coming back online retries the pending set.
func (e *Engine) SetOnline(ctx context.Context, online bool) {
	was := e.online.Swap(online)
	if was == online {
		return
	}
	if online {
		e.logger.Info("back online, syncing pending data")
		e.SyncPending(ctx)
	} else {
		e.logger.Warn("offline, changes will sync when connection is restored")
	}
}

type Status struct {
	Online         bool                 `json:"online"`
	SyncInProgress bool                 `json:"syncInProgress"`
	Pending        []domain.DataType    `json:"pendingSyncs"`
	LastSyncTimes  map[string]time.Time `json:"lastSyncTimes"`
	NextSyncIn     time.Duration        `json:"nextSyncIn"`
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	last, err := e.store.LastSyncs(ctx)
	if err != nil {
		return Status{}, err
	}

	e.mu.Lock()
	next := e.nextSync
	e.mu.Unlock()

	now := e.now()
	var nextIn time.Duration
	if next.IsZero() {
		nextIn = e.cfg.Interval - time.Duration(now.UnixNano())%e.cfg.Interval
	} else if next.After(now) {
		nextIn = next.Sub(now)
	}

	return Status{
		Online:         e.online.Load(),
		SyncInProgress: e.inFlight.Load(),
		Pending:        e.Pending(),
		LastSyncTimes:  last,
		NextSyncIn:     nextIn,
	}, nil
}

// SetInterval changes the schedule of a running Run loop.
func (e *Engine) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-e.intervalCh:
	default:
	}
	select {
	case e.intervalCh <- d:
	default:
	}
}

// Run syncs once, then every interval until ctx is done. Each tick probes
// the server first so connectivity changes are noticed.
func (e *Engine) Run(ctx context.Context) error {
	if !e.cfg.Enabled {
		e.logger.Info("no backend configured, sync disabled")
		return nil
	}

	interval := e.cfg.Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.scheduleNext(interval)
	e.SyncAll(ctx, false)
	e.logger.Info("autosave scheduled", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-e.intervalCh:
			interval = d
			ticker.Reset(d)
			e.scheduleNext(d)
			e.logger.Info("sync interval changed", zap.Duration("interval", d))
		case <-ticker.C:
			e.scheduleNext(interval)
			e.SetOnline(ctx, e.remote.Ping(ctx) == nil)
			if e.online.Load() && !e.inFlight.Load() {
				e.SyncAll(ctx, false)
			}
		}
	}
}

func (e *Engine) scheduleNext(d time.Duration) {
	e.mu.Lock()
	e.nextSync = e.now().Add(d)
	e.mu.Unlock()
}

// Flush makes a last forced pass before shutdown, giving up after the flush
// budget. It reports whether the pass finished in time.
func (e *Engine) Flush() (Report, bool) {
	if !e.cfg.Enabled {
		return Report{}, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.FlushBudget)
	defer cancel()

	done := make(chan Report, 1)
	go func() {
		done <- e.SyncAll(ctx, true)
	}()

	select {
	case r := <-done:
		return r, ctx.Err() == nil
	case <-ctx.Done():
		e.logger.Warn("flush budget exceeded, abandoning final sync", zap.Duration("budget", e.cfg.FlushBudget))
		return Report{}, false
	}
}
