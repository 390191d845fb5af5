package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"productive-cloud/internal/domain"
	"productive-cloud/internal/repository"
)

// ChangeNotifier is told about every write so other devices of the same user
// can pull. deviceID identifies the writer and is excluded from the fan-out.
type ChangeNotifier interface {
	DatasetChanged(userID, deviceID string, dataset *domain.Dataset)
	DatasetDeleted(userID, deviceID string, dataType domain.DataType)
}

type SyncRecorder interface {
	ObserveSync(dataType domain.DataType, action domain.SyncAction)
}

type DatasetService struct {
	datasetRepo repository.DatasetRepository
	notifier    ChangeNotifier
	recorder    SyncRecorder
	now         func() time.Time
}

func NewDatasetService(datasetRepo repository.DatasetRepository, notifier ChangeNotifier, recorder SyncRecorder) *DatasetService {
	return &DatasetService{
		datasetRepo: datasetRepo,
		notifier:    notifier,
		recorder:    recorder,
		now:         time.Now,
	}
}

// timestamp returns the current time at millisecond precision so it survives
// a JSON round trip through clients unchanged.
func (s *DatasetService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

var emptyPayload = json.RawMessage(`{}`)

func normalizePayload(data json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return emptyPayload
	}
	return data
}

// Reconcile applies the last-write-wins rule for one dataset:
//
//   - no remote document: create it from the request payload ("created")
//   - no lastSync, or the remote copy is not newer than lastSync: the request
//     payload replaces the remote one and the version is bumped ("synced")
//   - otherwise the remote copy wins and is returned untouched ("updated")
//
// Payloads are replaced wholesale, never merged.
func (s *DatasetService) Reconcile(userID, deviceID string, req *domain.SyncRequest) (*domain.SyncResponse, error) {
	if !req.DataType.Valid() {
		return nil, ErrInvalidDataType
	}

	resp, err := s.reconcile(userID, deviceID, req)
	if errors.Is(err, repository.ErrConflict) {
		// Another device created or replaced the document between our read
		// and write; one more pass sees its result.
		resp, err = s.reconcile(userID, deviceID, req)
	}
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.ObserveSync(req.DataType, resp.Action)
	}
	return resp, nil
}

func (s *DatasetService) reconcile(userID, deviceID string, req *domain.SyncRequest) (*domain.SyncResponse, error) {
	existing, err := s.datasetRepo.Find(userID, req.DataType)
	if errors.Is(err, repository.ErrNotFound) {
		now := s.timestamp()
		dataset := &domain.Dataset{
			UserID:       userID,
			DataType:     req.DataType,
			Data:         normalizePayload(req.Data),
			LastModified: now,
			Version:      1,
			CreatedAt:    now,
		}
		if err := s.datasetRepo.Create(dataset); err != nil {
			return nil, fmt.Errorf("failed to create %s data: %w", req.DataType, err)
		}
		s.notify(userID, deviceID, dataset)

		return &domain.SyncResponse{
			Action:    domain.ActionCreated,
			Data:      dataset.Data,
			Timestamp: dataset.LastModified,
			Version:   dataset.Version,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s data: %w", req.DataType, err)
	}

	if req.LastSync != nil && existing.LastModified.After(*req.LastSync) {
		return &domain.SyncResponse{
			Action:    domain.ActionUpdated,
			Data:      existing.Data,
			Timestamp: existing.LastModified,
			Version:   existing.Version,
		}, nil
	}

	updated := *existing
	updated.Data = normalizePayload(req.Data)
	updated.LastModified = s.timestamp()
	updated.Version = existing.Version + 1
	if err := s.datasetRepo.Update(&updated); err != nil {
		return nil, fmt.Errorf("failed to update %s data: %w", req.DataType, err)
	}
	s.notify(userID, deviceID, &updated)

	return &domain.SyncResponse{
		Action:    domain.ActionSynced,
		Data:      updated.Data,
		Timestamp: updated.LastModified,
		Version:   updated.Version,
	}, nil
}

// Save overwrites (or creates) a dataset unconditionally.
func (s *DatasetService) Save(userID, deviceID string, req *domain.SaveRequest) (*domain.Dataset, error) {
	if !req.DataType.Valid() {
		return nil, ErrInvalidDataType
	}

	dataset, err := s.save(userID, deviceID, req)
	if errors.Is(err, repository.ErrConflict) {
		dataset, err = s.save(userID, deviceID, req)
	}
	return dataset, err
}

func (s *DatasetService) save(userID, deviceID string, req *domain.SaveRequest) (*domain.Dataset, error) {
	now := s.timestamp()
	existing, err := s.datasetRepo.Find(userID, req.DataType)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		dataset := &domain.Dataset{
			UserID:       userID,
			DataType:     req.DataType,
			Data:         normalizePayload(req.Data),
			LastModified: now,
			Version:      1,
			CreatedAt:    now,
		}
		if err := s.datasetRepo.Create(dataset); err != nil {
			return nil, fmt.Errorf("failed to create %s data: %w", req.DataType, err)
		}
		s.notify(userID, deviceID, dataset)
		return dataset, nil

	case err != nil:
		return nil, fmt.Errorf("failed to load %s data: %w", req.DataType, err)
	}

	existing.Data = normalizePayload(req.Data)
	existing.LastModified = now
	existing.Version++
	if err := s.datasetRepo.Update(existing); err != nil {
		return nil, fmt.Errorf("failed to update %s data: %w", req.DataType, err)
	}
	s.notify(userID, deviceID, existing)

	return existing, nil
}

func (s *DatasetService) Get(userID string, dataType domain.DataType) (*domain.Dataset, error) {
	if !dataType.Valid() {
		return nil, ErrInvalidDataType
	}

	dataset, err := s.datasetRepo.Find(userID, dataType)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s data: %w", dataType, err)
	}

	return dataset, nil
}

func (s *DatasetService) GetAll(userID string) (*domain.AllDataResponse, error) {
	datasets, err := s.datasetRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	entries := make(map[domain.DataType]domain.DatasetEntry, len(datasets))
	for _, ds := range datasets {
		entries[ds.DataType] = domain.DatasetEntry{
			Data:         ds.Data,
			LastModified: ds.LastModified,
			Version:      ds.Version,
		}
	}

	return &domain.AllDataResponse{
		Data:       entries,
		TotalTypes: len(entries),
	}, nil
}

func (s *DatasetService) Delete(userID, deviceID string, dataType domain.DataType) error {
	if !dataType.Valid() {
		return ErrInvalidDataType
	}

	err := s.datasetRepo.Delete(userID, dataType)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrDatasetNotFound
	}
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.DatasetDeleted(userID, deviceID, dataType)
	}
	return nil
}

func (s *DatasetService) notify(userID, deviceID string, dataset *domain.Dataset) {
	if s.notifier != nil {
		s.notifier.DatasetChanged(userID, deviceID, dataset)
	}
}
