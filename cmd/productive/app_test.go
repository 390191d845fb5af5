package main

import (
	"testing"

	"productive-cloud/internal/crm"
	"productive-cloud/internal/domain"
	"productive-cloud/internal/habits"

	"go.uber.org/zap"
)

func TestDecodeDatasetWrongShapeIsEmpty(t *testing.T) {
	log := zap.NewNop()

	for _, raw := range []string{`[]`, `"x"`, `42`, `{"projects": "nope"}`} {
		p, err := decodeDataset(log, domain.DataTypeCRM, []byte(raw), crm.Decode)
		if err != nil {
			t.Fatalf("crm %s: error = %v", raw, err)
		}
		if len(p.Projects) != 0 {
			t.Errorf("crm %s: projects = %d, want 0", raw, len(p.Projects))
		}
	}

	for _, raw := range []string{`[]`, `"x"`, `{"habits": {}}`} {
		p, err := decodeDataset(log, domain.DataTypeHabits, []byte(raw), habits.Decode)
		if err != nil {
			t.Fatalf("habits %s: error = %v", raw, err)
		}
		if len(p.Habits) != 0 || p.Progress == nil {
			t.Errorf("habits %s: got %+v", raw, p)
		}
	}
}

func TestDecodeDatasetKeepsValidData(t *testing.T) {
	p, err := decodeDataset(zap.NewNop(), domain.DataTypeCRM, []byte(`{"projects":[{"id":"p1","tasks":[]}]}`), crm.Decode)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if p.FindProject("p1") == nil {
		t.Error("valid project lost")
	}
}
