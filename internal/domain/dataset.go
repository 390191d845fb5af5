package domain

import (
	"encoding/json"
	"time"
)

type DataType string

const (
	DataTypeHabits   DataType = "habits"
	DataTypeCRM      DataType = "crm"
	DataTypeCalendar DataType = "calendar"
	DataTypeSettings DataType = "settings"
)

// DataTypes lists every dataset in the order a sync pass visits them.
func DataTypes() []DataType {
	return []DataType{DataTypeHabits, DataTypeCRM, DataTypeCalendar, DataTypeSettings}
}

func (t DataType) Valid() bool {
	switch t {
	case DataTypeHabits, DataTypeCRM, DataTypeCalendar, DataTypeSettings:
		return true
	}
	return false
}

type SyncAction string

const (
	ActionCreated SyncAction = "created"
	ActionUpdated SyncAction = "updated"
	ActionSynced  SyncAction = "synced"
)

// Dataset is the one remote document a user has per data type.
type Dataset struct {
	UserID       string          `json:"userId"`
	DataType     DataType        `json:"dataType"`
	Data         json.RawMessage `json:"data"`
	LastModified time.Time       `json:"lastModified"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"createdAt"`

	// Rev is the storage revision the dataset was read at. Updates carry it
	// back so a concurrent write surfaces as a conflict.
	Rev string `json:"-"`
}

type SyncRequest struct {
	DataType DataType        `json:"dataType" validate:"required,oneof=habits crm calendar settings"`
	Data     json.RawMessage `json:"data"`
	LastSync *time.Time      `json:"lastSync"`
}

type SyncResponse struct {
	Action    SyncAction      `json:"action"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Version   int64           `json:"version,omitempty"`
}

type SaveRequest struct {
	DataType DataType        `json:"dataType" validate:"required,oneof=habits crm calendar settings"`
	Data     json.RawMessage `json:"data" validate:"required"`
}

type SaveResponse struct {
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Version   int64           `json:"version"`
}

type DatasetEntry struct {
	Data         json.RawMessage `json:"data"`
	LastModified time.Time       `json:"lastModified"`
	Version      int64           `json:"version"`
}

type AllDataResponse struct {
	Data       map[DataType]DatasetEntry `json:"data"`
	TotalTypes int                       `json:"totalTypes"`
}
