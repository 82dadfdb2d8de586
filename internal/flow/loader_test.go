package flow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadGraphExampleYAML(t *testing.T) {
	g, err := LoadGraph(filepath.Join("..", "..", "examples", "graphs", "lantern_road.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Validate(g); err != nil {
		t.Fatalf("example graph has problems: %v", err)
	}

	village := g.Node("village_gate")
	if village == nil {
		t.Fatal("village_gate missing")
	}
	if village.Track.MirrorCounter != "road_progress" || village.Track.Length != 24 {
		t.Errorf("unexpected track %+v", village.Track)
	}
	if len(village.Gates) != 2 || village.Gate("old_bridge").Position.Kind != PositionRange {
		t.Errorf("unexpected gates %+v", village.Gates)
	}
	if village.ExitRule.Mode != SpawnSteps || !village.ExitRule.RequireAllGatesCleared {
		t.Errorf("unexpected exit rule %+v", village.ExitRule)
	}
	if village.Gate("toll_booth").EventTiming != TimingOnPass {
		t.Errorf("expected on_pass timing")
	}

	forest := g.Node("lantern_forest")
	if c := forest.Gate("lantern_keeper").CooldownOnFail; c == nil || *c != 1 {
		t.Errorf("expected cooldown override 1, got %v", c)
	}
	if len(forest.ForcedEvents) != 1 || forest.ForcedEvents[0].Event.Effects[0].Multiplier != 1.5 {
		t.Errorf("unexpected forced events %+v", forest.ForcedEvents)
	}
	if len(g.EdgesFrom("lantern_forest")) != 1 {
		t.Errorf("expected one fallback edge")
	}
	if tbl, idx := g.EncounterTable("road_wildlife"); tbl == nil || idx != 0 || len(tbl.Entries) != 2 {
		t.Errorf("unexpected encounter table %+v", tbl)
	}
	if g.SideTable("roadside") == nil {
		t.Error("roadside table missing")
	}
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"entry": "a",
		"nodes": [
			{"id": "a", "track": {"length": 5}, "exit_rule": {"mode": "steps", "step_offset": 1},
			 "exits": [{"id": "ab", "target": "b", "weight": 1}]},
			{"id": "b", "track": {"length": 5}, "exit_rule": {"mode": "none"}}
		]
	}`)
	g, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if g.Entry != "a" || len(g.Nodes) != 2 || g.Node("a").Exits[0].Target != "b" {
		t.Errorf("unexpected graph %+v", g)
	}
	if g.Node("missing") != nil {
		t.Error("expected nil for unknown node")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		parse   func([]byte) (*Graph, error)
		data    string
		wantErr string
	}{
		{"json syntax", ParseJSON, `{"version":`, "parse flow graph JSON"},
		{"json version", ParseJSON, `{"version": 2}`, "unsupported flow graph version: 2"},
		{"yaml syntax", ParseYAML, "nodes: [", "parse flow graph YAML"},
		{"yaml version", ParseYAML, "version: 0\n", "unsupported flow graph version: 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parse([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadGraphPicksDecoderByExtension(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "g.yml")
	if err := os.WriteFile(yml, []byte("version: 1\nentry: a\nnodes:\n  - id: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGraph(yml); err != nil {
		t.Errorf("yml: %v", err)
	}

	js := filepath.Join(dir, "g.json")
	if err := os.WriteFile(js, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGraph(js); err == nil {
		t.Error("expected YAML content in a .json file to fail")
	}

	if _, err := LoadGraph(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
