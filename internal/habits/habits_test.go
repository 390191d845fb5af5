package habits

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

var day = time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC)

func TestAddHabitLimit(t *testing.T) {
	p, _ := Decode(nil)

	for i := 0; i < MaxHabits; i++ {
		if _, err := p.AddHabit(fmt.Sprintf("habit %d", i), "health", "", day); err != nil {
			t.Fatalf("AddHabit(%d) error = %v", i, err)
		}
	}
	if _, err := p.AddHabit("one too many", "", "", day); !errors.Is(err, ErrLimitReached) {
		t.Errorf("AddHabit() past limit error = %v, want ErrLimitReached", err)
	}
	if p.Habits[0].Frequency != "daily" {
		t.Errorf("default frequency = %q", p.Habits[0].Frequency)
	}
}

func TestAddHabitRequiresName(t *testing.T) {
	p, _ := Decode(nil)
	if _, err := p.AddHabit("  ", "", "", day); !errors.Is(err, ErrNameRequired) {
		t.Errorf("AddHabit(blank) error = %v, want ErrNameRequired", err)
	}
}

func TestToggleAndDailyCompletion(t *testing.T) {
	p, _ := Decode(nil)
	run, _ := p.AddHabit("Run", "", "", day)
	read, _ := p.AddHabit("Read", "", "", day)
	sleep, _ := p.AddHabit("Sleep", "", "", day)

	if got := p.DailyCompletion(day); got != 0 {
		t.Errorf("DailyCompletion() empty day = %d", got)
	}

	done, err := p.Toggle(day, run.ID)
	if err != nil || !done {
		t.Fatalf("Toggle() = %v, %v", done, err)
	}
	if got := p.DailyCompletion(day); got != 33 {
		t.Errorf("DailyCompletion() = %d, want 33", got)
	}

	p.Toggle(day, read.ID)
	if got := p.DailyCompletion(day); got != 67 {
		t.Errorf("DailyCompletion() = %d, want 67", got)
	}

	done, _ = p.Toggle(day, run.ID)
	if done {
		t.Error("second Toggle() should clear the mark")
	}
	if got := p.DailyCompletion(day.Add(24 * time.Hour)); got != 0 {
		t.Errorf("DailyCompletion(next day) = %d", got)
	}

	if _, err := p.Toggle(day, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Toggle(unknown) error = %v", err)
	}

	if err := p.RemoveHabit(sleep.ID); err != nil {
		t.Fatalf("RemoveHabit() error = %v", err)
	}
	if got := p.DailyCompletion(day); got != 50 {
		t.Errorf("DailyCompletion() after remove = %d, want 50", got)
	}
}

func TestRemoveHabitClearsHistory(t *testing.T) {
	p, _ := Decode(nil)
	h, _ := p.AddHabit("Stretch", "", "", day)
	p.SetCompleted(day, h.ID, true)

	if err := p.RemoveHabit(h.ID); err != nil {
		t.Fatalf("RemoveHabit() error = %v", err)
	}
	if len(p.Progress) != 0 {
		t.Errorf("progress not cleaned: %v", p.Progress)
	}
	if err := p.RemoveHabit(h.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveHabit(again) error = %v", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	raw, err := (&Payload{}).Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(raw) != `{"habits":[],"progress":{}}` {
		t.Errorf("Encode() empty = %s", raw)
	}

	p, err := Decode([]byte(`{"habits":[{"id":"h1","name":"Run"}],"progress":{"2024-02-29":{"h1":true}}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !p.Completed(day, "h1") {
		t.Error("decoded progress lost")
	}
	if got := p.DailyCompletion(day); got != 100 {
		t.Errorf("DailyCompletion() = %d, want 100", got)
	}

	if _, err := Decode([]byte(`{"habits":`)); err == nil {
		t.Error("Decode() accepted malformed JSON")
	}
}
