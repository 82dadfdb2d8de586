package savefile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/AaronLay10/StepwiseEngine/internal/flow"
	"github.com/AaronLay10/StepwiseEngine/internal/walk"
)

func sampleRecord(t *testing.T) walk.SaveRecord {
	t.Helper()
	g := &flow.Graph{
		Version: 1,
		Entry:   "gate_hall",
		Nodes: []flow.Node{{
			ID:     "gate_hall",
			Region: "keep",
			Track:  flow.TrackConfig{Length: 30},
			Gates: []flow.Gate{
				{ID: "portcullis", Order: 1, Position: flow.PositionSpec{Kind: flow.PositionRange, Min: 2, Max: 6}},
			},
			ExitRule: flow.ExitSpawnRule{Mode: flow.SpawnNone},
			OnEnter: &flow.Event{ID: "arrive", Effects: []*flow.Effect{
				{Kind: flow.EffCreateAnchor, Key: "hall_door", Scope: "region"},
				{Kind: flow.EffPushOverlay, Key: "torchlight", Multiplier: 0.5, Duration: 4},
				{Kind: flow.EffAddTag, Key: "visited_keep"},
			}},
		}},
	}
	state := walk.NewGameState(2024)
	ctrl := walk.NewController(g, state, walk.DefaultOptions())
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := ctrl.Step(context.Background()); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	return walk.Export(state)
}

func TestEncodeDecode(t *testing.T) {
	rec := sampleRecord(t)
	h := NewHeader("session-1", "quick", rec)

	var buf bytes.Buffer
	if err := Encode(&buf, h, rec); err != nil {
		t.Fatalf("encode: %v", err)
	}
	gotH, gotRec, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gotH.Format != Format || gotH.SessionID != "session-1" || gotH.NodeID != "gate_hall" || gotH.GlobalSteps != 3 {
		t.Errorf("unexpected header %+v", gotH)
	}
	if gotRec.GlobalSteps != rec.GlobalSteps || gotRec.NodeSeed != rec.NodeSeed || len(gotRec.Anchors) != 1 {
		t.Errorf("record changed through encoding: %+v", gotRec)
	}
	if _, err := walk.Import(gotRec); err != nil {
		t.Errorf("decoded record does not import: %v", err)
	}
}

func TestDecodeRejectsForeignStream(t *testing.T) {
	b, err := Marshal(Header{Format: "other"}, walk.SaveRecord{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, _, err := Unmarshal(b); err == nil {
		t.Error("expected error for a foreign format")
	}
	if _, _, err := Unmarshal([]byte("plain text")); err == nil {
		t.Error("expected error for an uncompressed stream")
	}
}

func TestFileStore(t *testing.T) {
	store := FileStore{Dir: filepath.Join(t.TempDir(), "saves")}
	ctx := context.Background()

	if _, _, err := store.Get(ctx, "slot1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	rec := sampleRecord(t)
	if err := store.Put(ctx, "slot1", NewHeader("s", "slot1", rec), rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	rec.GlobalSteps = 99
	if err := store.Put(ctx, "slot1", NewHeader("s", "slot1", rec), rec); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	h, got, err := store.Get(ctx, "slot1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.GlobalSteps != 99 || h.Slot != "slot1" {
		t.Errorf("expected latest save, got %d in %q", got.GlobalSteps, h.Slot)
	}
}

func TestSchemaValidatesExportedRecord(t *testing.T) {
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "save.schema.json"))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}

	validate := func(rec walk.SaveRecord) error {
		t.Helper()
		b, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return schema.Validate(v)
	}

	if err := validate(sampleRecord(t)); err != nil {
		t.Fatalf("exported record does not match schema: %v", err)
	}
	if err := validate(walk.Export(walk.NewGameState(0))); err != nil {
		t.Fatalf("empty record does not match schema: %v", err)
	}

	bad := sampleRecord(t)
	bad.Version = 2
	if err := validate(bad); err == nil {
		t.Error("expected schema to reject version 2")
	}
}
