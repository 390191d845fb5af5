package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"productive-cloud/internal/config"
	"productive-cloud/internal/crm"
	"productive-cloud/internal/domain"
	"productive-cloud/internal/habits"
	"productive-cloud/internal/localstore"
	"productive-cloud/internal/syncengine"
	"productive-cloud/internal/transport"
	"productive-cloud/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// app is the client state shared by every command.
type app struct {
	configPath string

	cfg      *config.ClientConfig
	log      *zap.Logger
	store    *localstore.Store
	client   *transport.Client
	engine   *syncengine.Engine
	deviceID string
}

func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadClient(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logger.Must(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File})

	store, err := localstore.Open(cfg.DataPath)
	if err != nil {
		return err
	}
	a.store = store

	a.deviceID = cfg.DeviceID
	if a.deviceID == "" {
		if a.deviceID, err = store.DeviceID(ctx, uuid.NewString); err != nil {
			return err
		}
	}

	baseURL := cfg.BaseURL()
	a.client = transport.NewClient(transport.Config{
		BaseURL:  baseURL,
		DeviceID: a.deviceID,
		Timeout:  cfg.Sync.Timeout,
	}, store)

	a.engine = syncengine.New(store, a.client, syncengine.Config{
		Enabled:     baseURL != "",
		Interval:    cfg.Sync.Interval,
		FlushBudget: cfg.Sync.FlushBudget,
	}, a.log)
	return nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.log != nil {
		a.log.Sync()
	}
}

func (a *app) requireBackend() error {
	if a.client.BaseURL() == "" {
		return fmt.Errorf("no backend configured (environment %q)", a.cfg.Environment)
	}
	return nil
}

// pushBestEffort sends a freshly edited dataset to the server when there is
// one and the user is logged in. Failures are left for the next sync.
func (a *app) pushBestEffort(ctx context.Context, dt domain.DataType) {
	if a.client.BaseURL() == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Sync.Timeout)
	defer cancel()

	if err := a.engine.ForceSync(ctx, dt); err != nil {
		a.log.Debug("push after edit failed", zap.String("data_type", string(dt)), zap.Error(err))
	}
}

func (a *app) loadCRM(ctx context.Context) (*crm.Payload, error) {
	raw, _, err := a.store.Get(ctx, string(domain.DataTypeCRM))
	if err != nil {
		return nil, err
	}
	return decodeDataset(a.log, domain.DataTypeCRM, raw, crm.Decode)
}

func (a *app) saveCRM(ctx context.Context, p *crm.Payload) error {
	raw, err := p.Encode()
	if err != nil {
		return err
	}
	if err := a.store.Put(ctx, string(domain.DataTypeCRM), raw); err != nil {
		return err
	}
	a.pushBestEffort(ctx, domain.DataTypeCRM)
	return nil
}

func (a *app) loadHabits(ctx context.Context) (*habits.Payload, error) {
	raw, _, err := a.store.Get(ctx, string(domain.DataTypeHabits))
	if err != nil {
		return nil, err
	}
	return decodeDataset(a.log, domain.DataTypeHabits, raw, habits.Decode)
}

// decodeDataset treats a blob of the wrong shape like a missing one and
// hands back the empty payload.
func decodeDataset[T any](log *zap.Logger, dt domain.DataType, raw []byte, decode func([]byte) (*T, error)) (*T, error) {
	p, err := decode(raw)
	if err == nil {
		return p, nil
	}
	log.Warn("stored dataset unreadable, starting empty", zap.String("data_type", string(dt)), zap.Error(err))
	return decode(nil)
}

func (a *app) saveHabits(ctx context.Context, p *habits.Payload) error {
	raw, err := p.Encode()
	if err != nil {
		return err
	}
	if err := a.store.Put(ctx, string(domain.DataTypeHabits), json.RawMessage(raw)); err != nil {
		return err
	}
	a.pushBestEffort(ctx, domain.DataTypeHabits)
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}
