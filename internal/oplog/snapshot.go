package oplog

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"

	"cutplan/internal/project"
)

// EncodeState serializes a state into the compressed blob stored in the
// snapshots table.
func EncodeState(state *project.State) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("state is required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot state: %w", err)
	}

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish snapshot compression: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeState restores a state from a snapshot blob.
func DecodeState(blob []byte) (*project.State, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("snapshot blob is empty")
	}
	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("open snapshot blob: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	var state project.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot state: %w", err)
	}
	return &state, nil
}
