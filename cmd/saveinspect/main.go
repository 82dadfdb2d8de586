// Command saveinspect prints the header and progress summary of a save and
// checks the record against the save schema.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/AaronLay10/StepwiseEngine/internal/savefile"
	"github.com/AaronLay10/StepwiseEngine/internal/storage/sqlite"
	"github.com/AaronLay10/StepwiseEngine/internal/walk"
)

func main() {
	file := flag.String("file", "", "path to a .sav file")
	db := flag.String("sqlite", "", "path to a stepwise sqlite database")
	session := flag.String("session", "local", "session id inside the sqlite database")
	slot := flag.String("slot", "default", "save slot inside the sqlite database")
	schemaPath := flag.String("schema", "schemas/save.schema.json", "save record JSON schema (empty to skip)")
	flag.Parse()

	h, rec, err := load(*file, *db, *session, *slot)
	if err != nil {
		log.Fatalf("saveinspect: %v", err)
	}

	if *schemaPath != "" {
		if err := validate(*schemaPath, rec); err != nil {
			log.Fatalf("saveinspect: record does not match schema: %v", err)
		}
	}

	state, err := walk.Import(rec)
	if err != nil {
		log.Fatalf("saveinspect: %v", err)
	}

	out := struct {
		Header  savefile.Header `json:"header"`
		Flags   int             `json:"flags"`
		Anchors []walk.Anchor   `json:"anchors"`
		Visits  map[string]int  `json:"visits"`
	}{
		Header:  h,
		Flags:   len(rec.Flags),
		Anchors: state.Anchors.ExportAnchors(),
		Visits:  rec.Visits,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("saveinspect: %v", err)
	}
}

func load(file, db, session, slot string) (savefile.Header, walk.SaveRecord, error) {
	switch {
	case file != "" && db != "":
		return savefile.Header{}, walk.SaveRecord{}, fmt.Errorf("use either -file or -sqlite")
	case file != "":
		return savefile.ReadFile(file)
	case db != "":
		s, err := sqlite.Open(db, session)
		if err != nil {
			return savefile.Header{}, walk.SaveRecord{}, err
		}
		defer s.Close()
		return s.Get(context.Background(), slot)
	default:
		return savefile.Header{}, walk.SaveRecord{}, fmt.Errorf("-file or -sqlite is required")
	}
}

func validate(schemaPath string, rec walk.SaveRecord) error {
	schema, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
