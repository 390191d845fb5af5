package repository

import (
	"context"
	"fmt"
	"time"

	"productive-cloud/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type UserRepository interface {
	Create(user *domain.User) error
	FindByEmail(email string) (*domain.User, error)
	FindByID(id string) (*domain.User, error)
	FindByUsername(username string) (*domain.User, error)
	UpdateLastLogin(id string, at time.Time) error
}

type userRepository struct {
	db *kivik.DB
}

type userDoc struct {
	ID      string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.User
}

func NewUserRepository(client *kivik.Client, dbName string) UserRepository {
	return &userRepository{
		db: client.DB(dbName),
	}
}

func userDocID(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func (r *userRepository) Create(user *domain.User) error {
	doc := userDoc{
		ID:      userDocID(user.ID),
		DocType: "user",
		User:    *user,
	}

	if _, err := r.db.Put(context.Background(), doc.ID, doc); err != nil {
		if kivik.HTTPStatus(err) == 409 {
			return ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) FindByEmail(email string) (*domain.User, error) {
	return r.findOne("email", email)
}

func (r *userRepository) FindByUsername(username string) (*domain.User, error) {
	return r.findOne("username", username)
}

func (r *userRepository) findOne(field, value string) (*domain.User, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": "user",
			field:      value,
		},
		"limit": 1,
	}

	rows := r.db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query user by %s: %w", field, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrNotFound
	}

	var doc userDoc
	if err := rows.ScanDoc(&doc); err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return &doc.User, nil
}

func (r *userRepository) FindByID(id string) (*domain.User, error) {
	doc, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return &doc.User, nil
}

func (r *userRepository) get(id string) (*userDoc, error) {
	var doc userDoc
	if err := r.db.Get(context.Background(), userDocID(id)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return &doc, nil
}

func (r *userRepository) UpdateLastLogin(id string, at time.Time) error {
	doc, err := r.get(id)
	if err != nil {
		return err
	}

	doc.LastLogin = at
	if _, err := r.db.Put(context.Background(), doc.ID, doc); err != nil {
		if kivik.HTTPStatus(err) == 409 {
			return ErrConflict
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}
