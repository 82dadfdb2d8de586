package walk

import (
	"context"
	"encoding/json"
	"testing"
)

func TestSaveResumeContinuesIdentically(t *testing.T) {
	g := gateGraph()
	g.Nodes[0].Gates[0].Position.Steps = 2
	opts := DefaultOptions()
	opts.ResetTrackOnFail = false
	opts.Input = AutoInput{TakeExit: true}
	ctrl, state := newTestController(t, g, opts)
	for i := 0; i < 3; i++ {
		mustStep(t, ctrl)
	}

	b, err := json.Marshal(Export(state))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var rec SaveRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	loaded, err := Import(rec)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, ok := loaded.Gates.Pending(); !ok {
		t.Fatal("expected gate snapshot queued for resume")
	}

	resumed := NewController(g, loaded, opts)
	if err := resumed.Start(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if loaded.Walk.Visits["forest"] != 1 {
		t.Errorf("resume must not count as a visit, got %d", loaded.Walk.Visits["forest"])
	}
	if loaded.StepSerial != state.StepSerial || loaded.StepSerial != 3 {
		t.Errorf("expected step serial 3 restored, got %d", loaded.StepSerial)
	}
	if loaded.Anchors.Len() != state.Anchors.Len() {
		t.Errorf("expected anchors restored, got %d want %d", loaded.Anchors.Len(), state.Anchors.Len())
	}
	want, _ := state.Gates.State("g1")
	got, _ := loaded.Gates.State("g1")
	if got != want {
		t.Errorf("gate state differs after resume: %+v vs %+v", got, want)
	}

	state.Flags["lamp"] = true
	loaded.Flags["lamp"] = true
	for i := 0; i < 6; i++ {
		a := mustStep(t, ctrl)
		b := mustStep(t, resumed)
		if a.Outcome != b.Outcome || a.NodeID != b.NodeID {
			t.Fatalf("step %d diverged: %s/%s vs %s/%s", i, a.Outcome, a.NodeID, b.Outcome, b.NodeID)
		}
	}
	if state.Counters != loaded.Counters {
		t.Errorf("counters diverged: %+v vs %+v", state.Counters, loaded.Counters)
	}
}

func TestSaveExportSharesNothing(t *testing.T) {
	s := anchoredState()
	s.Flags["torch"] = true
	s.Tags["brave"] = true
	s.Anchors.CreateAnchor("cp", s, ScopeGraph)
	rec := Export(s)

	rec.Flags["torch"] = false
	rec.Anchors = nil
	if !s.Flags["torch"] || s.Anchors.Len() == 0 {
		t.Error("mutating the record changed the live state")
	}
	if len(rec.Tags) != 1 || rec.Tags[0] != "brave" {
		t.Errorf("expected sorted tag list, got %v", rec.Tags)
	}
	if rec.GateNode != "hall" || len(rec.Gates) != 2 || rec.Gates[0].GateID != "a" {
		t.Errorf("expected hall gates sorted by id, got %s %+v", rec.GateNode, rec.Gates)
	}
}

func TestSaveRejectsUnknownVersion(t *testing.T) {
	rec := Export(NewGameState(1))
	rec.Version = SaveVersion + 1
	_, err := Import(rec)
	if !IsCode(err, CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestSaveClampsNegativeCounters(t *testing.T) {
	rec := Export(NewGameState(1))
	rec.GlobalSteps = -3
	rec.TrackProgress = -1
	s, err := Import(rec)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if s.Counters != (Counters{}) {
		t.Errorf("expected counters clamped at zero, got %+v", s.Counters)
	}
}
