package cognition

import (
	"strings"
	"testing"
	"time"
)

func record(id, cognitionID string, start time.Time) *ExecutionRecord {
	return &ExecutionRecord{
		ExecutionID: id,
		CognitionID: cognitionID,
		Status:      ExecutionCompleted,
		StartTime:   start,
		EndTime:     start.Add(time.Minute),
	}
}

func TestPutRejectsDuplicatesAndMissingID(t *testing.T) {
	arc := NewArchive()
	now := time.Now().UTC()

	if err := arc.Put(record("exec_1", "c1", now)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := arc.Put(record("exec_1", "c1", now)); err == nil {
		t.Error("expected error on duplicate execution id")
	}
	if err := arc.Put(&ExecutionRecord{}); err == nil {
		t.Error("expected error on missing execution id")
	}
}

func TestGetUnknownExecution(t *testing.T) {
	arc := NewArchive()
	if _, err := arc.Get("exec_ghost"); !IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestListMostRecentFirst(t *testing.T) {
	arc := NewArchive()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	arc.Put(record("exec_old", "c1", base))
	arc.Put(record("exec_new", "c1", base.Add(time.Hour)))
	arc.Put(record("exec_mid", "c1", base.Add(30*time.Minute)))

	got := arc.List()
	want := []string{"exec_new", "exec_mid", "exec_old"}
	for i, rec := range got {
		if rec.ExecutionID != want[i] {
			t.Errorf("List[%d] = %s, want %s", i, rec.ExecutionID, want[i])
		}
	}
}

func TestScoreClampsAndStamps(t *testing.T) {
	arc := NewArchive()
	arc.Put(record("exec_1", "c1", time.Now().UTC()))

	tests := []struct {
		input int
		want  int
	}{
		{150, 100},
		{-150, -100},
		{42, 42},
	}
	for _, tt := range tests {
		if err := arc.Score("exec_1", tt.input, "solid run"); err != nil {
			t.Fatalf("score: %v", err)
		}
		rec, _ := arc.Get("exec_1")
		if rec.Score == nil || *rec.Score != tt.want {
			t.Errorf("Score(%d) stored %v, want %d", tt.input, rec.Score, tt.want)
		}
		if rec.Feedback != "solid run" || rec.ScoredAt == "" {
			t.Errorf("feedback/timestamp not recorded: %+v", rec)
		}
	}

	if err := arc.Score("exec_ghost", 10, ""); !IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestInjectMemoryAndQuery(t *testing.T) {
	arc := NewArchive()

	id1 := arc.InjectMemory("c1", "Analysis", map[string]string{"fact": "rates rising"})
	id2 := arc.InjectMemory("c1", "Decision", map[string]string{"fact": "sell signal"})
	arc.InjectMemory("c2", "Analysis", map[string]string{"fact": "unrelated"})

	if !strings.HasPrefix(id1, "memory_") {
		t.Errorf("memory id %q missing prefix", id1)
	}

	memories := arc.MemoriesFor("c1")
	if len(memories) != 2 {
		t.Fatalf("MemoriesFor returned %d artifacts, want 2", len(memories))
	}
	if memories[0].ID != id1 || memories[1].ID != id2 {
		t.Errorf("memories out of creation order: %s, %s", memories[0].ID, memories[1].ID)
	}

	// Dangling cognition references are tolerated.
	if got := arc.InjectMemory("cognition_never_registered", "X", nil); got == "" {
		t.Error("dangling memory injection should still return an id")
	}
}

func TestBuildSnapshot(t *testing.T) {
	reg := NewRegistry()
	arc := NewArchive()

	def, err := reg.Register(&Definition{
		Name:   "Snapshot Target",
		Agents: []string{"Theory", "Echo"},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	arc.Put(record("exec_1", def.ID, base))
	arc.Put(record("exec_2", def.ID, base.Add(time.Hour)))
	arc.Put(record("exec_other", "cognition_other", base))
	arc.InjectMemory(def.ID, "Analysis", map[string]string{"k": "v"})

	rep := stubReputation{"Theory": 80, "Echo": 60}
	snap, err := BuildSnapshot(reg, arc, rep, def.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if !strings.HasPrefix(snap.SnapshotID, "snapshot_") {
		t.Errorf("snapshot id %q missing prefix", snap.SnapshotID)
	}
	if snap.Definition.ID != def.ID {
		t.Errorf("snapshot definition = %s", snap.Definition.ID)
	}
	if len(snap.Executions) != 2 {
		t.Errorf("snapshot has %d executions, want 2", len(snap.Executions))
	}
	if len(snap.Memories) != 1 {
		t.Errorf("snapshot has %d memories, want 1", len(snap.Memories))
	}
	if snap.Reputation["Theory"] != 80 || snap.Reputation["Echo"] != 60 {
		t.Errorf("snapshot reputation = %v", snap.Reputation)
	}

	if _, err := BuildSnapshot(reg, arc, rep, "cognition_ghost"); !IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

type stubReputation map[string]float64

func (s stubReputation) SnapshotFor(agents []string) map[string]float64 {
	out := make(map[string]float64)
	for _, a := range agents {
		out[a] = s[a]
	}
	return out
}
