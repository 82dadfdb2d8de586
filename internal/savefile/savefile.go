// Package savefile encodes session saves as a zstd stream holding a JSON
// header line followed by the JSON save record.
package savefile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/AaronLay10/StepwiseEngine/internal/walk"
)

// Format identifies a stepwise save stream.
const Format = "stepwise-save"

// ErrNotFound is returned by stores when a slot holds no save.
var ErrNotFound = errors.New("save not found")

// Header is readable without decoding the whole record.
type Header struct {
	Format      string    `json:"format"`
	Version     int       `json:"version"`
	SessionID   string    `json:"session_id"`
	Slot        string    `json:"slot"`
	SavedAt     time.Time `json:"saved_at"`
	GlobalSteps int       `json:"global_steps"`
	NodeID      string    `json:"node_id"`
}

// Store persists save records by slot.
type Store interface {
	Put(ctx context.Context, slot string, h Header, rec walk.SaveRecord) error
	Get(ctx context.Context, slot string) (Header, walk.SaveRecord, error)
}

// NewHeader fills a header describing rec.
func NewHeader(sessionID, slot string, rec walk.SaveRecord) Header {
	return Header{
		Format:      Format,
		Version:     rec.Version,
		SessionID:   sessionID,
		Slot:        slot,
		SavedAt:     time.Now().UTC(),
		GlobalSteps: rec.GlobalSteps,
		NodeID:      rec.CurrentNode,
	}
}

// Encode writes h and rec to w.
func Encode(w io.Writer, h Header, rec walk.SaveRecord) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)

	hb, err := json.Marshal(h)
	if err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(rec); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode save: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Decode reads a stream written by Encode.
func Decode(r io.Reader) (Header, walk.SaveRecord, error) {
	var h Header
	var rec walk.SaveRecord

	dec, err := zstd.NewReader(r)
	if err != nil {
		return h, rec, err
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, rec, fmt.Errorf("read save header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, rec, fmt.Errorf("decode save header: %w", err)
	}
	if h.Format != Format {
		return h, rec, fmt.Errorf("not a stepwise save: format %q", h.Format)
	}
	if err := json.NewDecoder(br).Decode(&rec); err != nil {
		return h, rec, fmt.Errorf("decode save: %w", err)
	}
	return h, rec, nil
}

// Marshal is Encode into a byte slice, used by the database stores.
func Marshal(h Header, rec walk.SaveRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, h, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal is Decode from a byte slice.
func Unmarshal(b []byte) (Header, walk.SaveRecord, error) {
	return Decode(bytes.NewReader(b))
}

// WriteFile writes the save to path. The file is replaced atomically.
func WriteFile(path string, h Header, rec walk.SaveRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(f, h, rec); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadFile reads a save written by WriteFile.
func ReadFile(path string) (Header, walk.SaveRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, walk.SaveRecord{}, err
	}
	defer f.Close()
	return Decode(f)
}

// FileStore keeps one file per slot under Dir.
type FileStore struct {
	Dir string
}

func (s FileStore) path(slot string) string {
	return filepath.Join(s.Dir, slot+".sav")
}

// Put implements Store.
func (s FileStore) Put(_ context.Context, slot string, h Header, rec walk.SaveRecord) error {
	return WriteFile(s.path(slot), h, rec)
}

// Get implements Store.
func (s FileStore) Get(_ context.Context, slot string) (Header, walk.SaveRecord, error) {
	h, rec, err := ReadFile(s.path(slot))
	if errors.Is(err, os.ErrNotExist) {
		return h, rec, ErrNotFound
	}
	return h, rec, err
}
