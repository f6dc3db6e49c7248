package oplog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"cutplan/internal/project"
)

// StateHash computes the content hash of a project state: sha256 over the
// canonical JSON encoding. Struct fields marshal in declaration order and
// every slice in project.State is id-ordered, so equal states always
// produce equal hashes.
//
// Wall-clock timestamps are zeroed before hashing; replay re-executes
// commands at a different time and must still reproduce identical hashes.
func StateHash(state *project.State) (string, error) {
	if state == nil {
		return "", fmt.Errorf("state is required")
	}
	data, err := json.Marshal(Canonical(state))
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// EmptyStateHash is the hash of a project file before its first command:
// no project, no entities. The first logged command records it as pre-hash.
func EmptyStateHash() string {
	sum := sha256.Sum256([]byte("cutplan:empty-state"))
	return hex.EncodeToString(sum[:])
}

// Canonical returns a copy of state with volatile timestamps zeroed. The
// copy shares no mutable data with the input and is the form used for both
// hashing and state-equality comparison.
func Canonical(state *project.State) *project.State {
	out := &project.State{}
	if state.Project != nil {
		p := *state.Project
		p.CreatedAt = time.Time{}
		p.UpdatedAt = time.Time{}
		out.Project = &p
	}
	for _, seq := range state.Sequences {
		s := *seq
		s.CreatedAt = time.Time{}
		s.UpdatedAt = time.Time{}
		if seq.MarkIn != nil {
			v := *seq.MarkIn
			s.MarkIn = &v
		}
		if seq.MarkOut != nil {
			v := *seq.MarkOut
			s.MarkOut = &v
		}
		out.Sequences = append(out.Sequences, &s)
	}
	for _, tr := range state.Tracks {
		t := *tr
		out.Tracks = append(out.Tracks, &t)
	}
	for _, c := range state.Clips {
		cc := *c
		out.Clips = append(out.Clips, &cc)
	}
	for _, m := range state.Media {
		mm := *m
		out.Media = append(out.Media, &mm)
	}
	for _, p := range state.Properties {
		pp := *p
		out.Properties = append(out.Properties, &pp)
	}
	return out
}

// StatesEqual compares two states field by field in their canonical form,
// ignoring wall-clock timestamps.
func StatesEqual(a, b *project.State) (bool, error) {
	ja, err := json.Marshal(Canonical(a))
	if err != nil {
		return false, err
	}
	jb, err := json.Marshal(Canonical(b))
	if err != nil {
		return false, err
	}
	return string(ja) == string(jb), nil
}
