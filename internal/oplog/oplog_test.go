package oplog_test

import (
	"testing"
	"time"

	"cutplan/internal/oplog"
	"cutplan/internal/project"
	"cutplan/internal/timebase"
)

func sampleState(created time.Time) *project.State {
	rate := timebase.Rate{Num: 30, Den: 1}
	return &project.State{
		Project: &project.Project{
			ID:           "proj-1",
			Name:         "Demo",
			CreatedAt:    created,
			UpdatedAt:    created,
			SettingsJSON: "{}",
		},
		Sequences: []*project.Sequence{{
			ID:            "seq-1",
			ProjectID:     "proj-1",
			Name:          "Main",
			Kind:          project.SequenceTimeline,
			Rate:          rate,
			Width:         1920,
			Height:        1080,
			SelectionJSON: "[]",
			CreatedAt:     created,
			UpdatedAt:     created,
		}},
		Tracks: []*project.Track{{
			ID:         "track-1",
			SequenceID: "seq-1",
			Type:       project.TrackVideo,
			Enabled:    true,
		}},
		Clips: []*project.Clip{{
			ID:        "clip-1",
			Kind:      project.ClipTimeline,
			TrackID:   "track-1",
			MediaID:   "media-1",
			Start:     0,
			Duration:  100,
			SourceIn:  0,
			SourceOut: 100,
			Rate:      rate,
			Enabled:   true,
		}},
		Media: []*project.Media{{
			ID:       "media-1",
			FileName: "a.mov",
			FilePath: "/media/a.mov",
			Duration: 1000,
			Rate:     rate,
		}},
	}
}

func TestStateHashIgnoresWallClock(t *testing.T) {
	a := sampleState(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := sampleState(time.Date(2026, 6, 1, 12, 30, 0, 0, time.UTC))

	ha, err := oplog.StateHash(a)
	if err != nil {
		t.Fatalf("StateHash: %v", err)
	}
	hb, err := oplog.StateHash(b)
	if err != nil {
		t.Fatalf("StateHash: %v", err)
	}
	if ha != hb {
		t.Fatalf("timestamps leaked into hash: %s vs %s", ha, hb)
	}
}

func TestStateHashDetectsEntityChange(t *testing.T) {
	now := time.Now().UTC()
	a := sampleState(now)
	b := sampleState(now)
	b.Clips[0].Start = 1

	ha, _ := oplog.StateHash(a)
	hb, _ := oplog.StateHash(b)
	if ha == hb {
		t.Fatal("expected differing hashes after clip mutation")
	}
}

func TestStatesEqual(t *testing.T) {
	now := time.Now().UTC()
	a := sampleState(now)
	b := sampleState(now.Add(time.Hour))

	equal, err := oplog.StatesEqual(a, b)
	if err != nil {
		t.Fatalf("StatesEqual: %v", err)
	}
	if !equal {
		t.Fatal("expected states equal ignoring timestamps")
	}

	b.Tracks[0].Locked = true
	equal, err = oplog.StatesEqual(a, b)
	if err != nil {
		t.Fatalf("StatesEqual: %v", err)
	}
	if equal {
		t.Fatal("expected inequality after track mutation")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	state := sampleState(time.Now().UTC())
	blob, err := oplog.EncodeState(state)
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}

	decoded, err := oplog.DecodeState(blob)
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}
	equal, err := oplog.StatesEqual(state, decoded)
	if err != nil {
		t.Fatalf("StatesEqual: %v", err)
	}
	if !equal {
		t.Fatal("snapshot round trip altered state")
	}
}
