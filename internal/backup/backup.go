// Package backup writes and reads the portable export file: a versioned
// envelope with one module per dataset. Older exports that carried only the
// habits dataset at the top level are still accepted.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"productive-cloud/internal/crm"
	"productive-cloud/internal/domain"
)

const (
	AppName       = "Productive Cloud"
	FormatVersion = "2.0"
	moduleVersion = "1.0"
)

var ErrInvalidBackup = errors.New("invalid backup file format")

var moduleNames = map[domain.DataType]string{
	domain.DataTypeHabits:   "Habit Tracker",
	domain.DataTypeCRM:      "Project CRM",
	domain.DataTypeCalendar: "Calendar",
	domain.DataTypeSettings: "Settings",
}

type ExportInfo struct {
	App          string    `json:"app"`
	Version      string    `json:"version"`
	ExportDate   time.Time `json:"exportDate"`
	Description  string    `json:"description,omitempty"`
	TotalModules int       `json:"totalModules"`
}

type Module struct {
	Module  string          `json:"module"`
	Version string          `json:"version"`
	Data    json.RawMessage `json:"data"`
}

type File struct {
	ExportInfo ExportInfo        `json:"exportInfo"`
	Modules    map[string]Module `json:"modules"`
}

// Source reads datasets for export.
type Source interface {
	Get(ctx context.Context, dataType string) (json.RawMessage, bool, error)
}

// Sink receives imported datasets.
type Sink interface {
	Put(ctx context.Context, dataType string, value json.RawMessage) error
}

// Export collects every dataset present in src. Habits are always exported,
// as an empty dataset when there is none.
func Export(ctx context.Context, src Source, now time.Time) (*File, error) {
	f := &File{
		ExportInfo: ExportInfo{
			App:         AppName,
			Version:     FormatVersion,
			ExportDate:  now.UTC(),
			Description: "Unified Productive Cloud Export - All Modules",
		},
		Modules: make(map[string]Module),
	}

	for _, dt := range domain.DataTypes() {
		data, ok, err := src.Get(ctx, string(dt))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dt, err)
		}
		if !ok {
			if dt != domain.DataTypeHabits {
				continue
			}
			data = json.RawMessage(`{"habits":[],"progress":{}}`)
		}
		f.Modules[string(dt)] = Module{Module: moduleNames[dt], Version: moduleVersion, Data: data}
	}

	f.ExportInfo.TotalModules = len(f.Modules)
	return f, nil
}

func (f *File) Marshal() ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}

type envelope struct {
	ExportInfo *ExportInfo       `json:"exportInfo"`
	Modules    map[string]Module `json:"modules"`
	Habits     json.RawMessage   `json:"habits"`
	Progress   json.RawMessage   `json:"progress"`
}

// Parse reads an export in either format and returns the datasets it holds.
// Modules for unknown datasets are ignored; crm data is normalized.
func Parse(raw []byte, now time.Time) (map[domain.DataType]json.RawMessage, error) {
	var p envelope
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}

	if p.ExportInfo != nil && p.ExportInfo.Version == FormatVersion && p.Modules != nil {
		return parseUnified(&p, now)
	}
	if isArray(p.Habits) && isObject(p.Progress) {
		return parseLegacy(&p)
	}
	return nil, ErrInvalidBackup
}

func parseUnified(p *envelope, now time.Time) (map[domain.DataType]json.RawMessage, error) {
	if p.ExportInfo.App != AppName {
		return nil, fmt.Errorf("%w: not a %s export", ErrInvalidBackup, AppName)
	}
	if _, ok := p.Modules[string(domain.DataTypeHabits)]; !ok {
		return nil, fmt.Errorf("%w: habits module missing", ErrInvalidBackup)
	}

	out := make(map[domain.DataType]json.RawMessage)
	for name, m := range p.Modules {
		dt := domain.DataType(name)
		if !dt.Valid() || isNull(m.Data) {
			continue
		}

		var buf bytes.Buffer
		if err := json.Compact(&buf, m.Data); err != nil {
			return nil, fmt.Errorf("%w: %s module: %v", ErrInvalidBackup, name, err)
		}
		data := json.RawMessage(buf.Bytes())
		if dt == domain.DataTypeCRM {
			normalized, err := normalizeCRM(data, now)
			if err != nil {
				return nil, fmt.Errorf("%w: crm module: %v", ErrInvalidBackup, err)
			}
			data = normalized
		}
		out[dt] = data
	}
	return out, nil
}

func parseLegacy(p *envelope) (map[domain.DataType]json.RawMessage, error) {
	data, err := json.Marshal(struct {
		Habits   json.RawMessage `json:"habits"`
		Progress json.RawMessage `json:"progress"`
	}{p.Habits, p.Progress})
	if err != nil {
		return nil, err
	}
	return map[domain.DataType]json.RawMessage{domain.DataTypeHabits: data}, nil
}

func normalizeCRM(raw json.RawMessage, now time.Time) (json.RawMessage, error) {
	payload, err := crm.Decode(raw)
	if err != nil {
		return nil, err
	}
	payload.Normalize(now)
	return payload.Encode()
}

// Restore parses raw and writes every dataset it holds into dst. It
// returns the datasets written, sorted.
func Restore(ctx context.Context, dst Sink, raw []byte, now time.Time) ([]domain.DataType, error) {
	datasets, err := Parse(raw, now)
	if err != nil {
		return nil, err
	}

	types := make([]domain.DataType, 0, len(datasets))
	for dt := range datasets {
		types = append(types, dt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, dt := range types {
		if err := dst.Put(ctx, string(dt), datasets[dt]); err != nil {
			return nil, fmt.Errorf("write %s: %w", dt, err)
		}
	}
	return types, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func isArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

func isObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}
