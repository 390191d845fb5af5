package repository

import (
	"context"
	"fmt"

	"productive-cloud/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// DatasetRepository stores exactly one document per (user, data type).
type DatasetRepository interface {
	Find(userID string, dataType domain.DataType) (*domain.Dataset, error)
	ListByUser(userID string) ([]*domain.Dataset, error)
	Create(dataset *domain.Dataset) error
	Update(dataset *domain.Dataset) error
	Delete(userID string, dataType domain.DataType) error
}

type datasetRepository struct {
	db *kivik.DB
}

type datasetDoc struct {
	ID      string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.Dataset
}

func NewDatasetRepository(client *kivik.Client, dbName string) DatasetRepository {
	return &datasetRepository{
		db: client.DB(dbName),
	}
}

// The document id doubles as the uniqueness constraint on (user, data type).
func datasetDocID(userID string, dataType domain.DataType) string {
	return fmt.Sprintf("data:%s:%s", userID, dataType)
}

func (r *datasetRepository) get(userID string, dataType domain.DataType) (*datasetDoc, error) {
	var doc datasetDoc
	if err := r.db.Get(context.Background(), datasetDocID(userID, dataType)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s data: %w", dataType, err)
	}
	return &doc, nil
}

func (r *datasetRepository) Find(userID string, dataType domain.DataType) (*domain.Dataset, error) {
	doc, err := r.get(userID, dataType)
	if err != nil {
		return nil, err
	}
	ds := doc.Dataset
	ds.Rev = doc.Rev
	return &ds, nil
}

func (r *datasetRepository) ListByUser(userID string) ([]*domain.Dataset, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": "dataset",
			"userId":   userID,
		},
	}

	rows := r.db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*domain.Dataset
	for rows.Next() {
		var doc datasetDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		ds := doc.Dataset
		ds.Rev = doc.Rev
		datasets = append(datasets, &ds)
	}

	return datasets, nil
}

func (r *datasetRepository) Create(dataset *domain.Dataset) error {
	doc := datasetDoc{
		ID:      datasetDocID(dataset.UserID, dataset.DataType),
		DocType: "dataset",
		Dataset: *dataset,
	}

	if _, err := r.db.Put(context.Background(), doc.ID, doc); err != nil {
		if kivik.HTTPStatus(err) == 409 {
			return ErrConflict
		}
		return fmt.Errorf("failed to create %s data: %w", dataset.DataType, err)
	}

	return nil
}

// Update writes dataset at the revision it was read with. CouchDB rejects
// the write with 409 when someone else wrote in between.
func (r *datasetRepository) Update(dataset *domain.Dataset) error {
	doc := datasetDoc{
		ID:      datasetDocID(dataset.UserID, dataset.DataType),
		Rev:     dataset.Rev,
		DocType: "dataset",
		Dataset: *dataset,
	}

	rev, err := r.db.Put(context.Background(), doc.ID, doc)
	if err != nil {
		if kivik.HTTPStatus(err) == 409 {
			return ErrConflict
		}
		return fmt.Errorf("failed to update %s data: %w", dataset.DataType, err)
	}

	dataset.Rev = rev
	return nil
}

func (r *datasetRepository) Delete(userID string, dataType domain.DataType) error {
	existing, err := r.get(userID, dataType)
	if err != nil {
		return err
	}

	if _, err := r.db.Delete(context.Background(), existing.ID, existing.Rev); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s data: %w", dataType, err)
	}

	return nil
}
