package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"cutplan/internal/project"
	"cutplan/internal/timebase"
)

// MustOpenStore opens a project store in a temp directory and registers
// cleanup.
func MustOpenStore(t testing.TB) *project.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "project.db")
	store, err := project.Open(path)
	if err != nil {
		t.Fatalf("project.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Fixture holds the ids of a minimal seeded project: one timeline sequence
// with a video and an audio track, and one registered media record.
type Fixture struct {
	ProjectID    string
	SequenceID   string
	VideoTrackID string
	AudioTrackID string
	MediaID      string
	FrameRate    timebase.Rate
}

// SeedTimeline writes a minimal project tree directly through the store,
// bypassing the command log. For store and resolver level tests only; tests
// exercising hashing or replay must seed through the dispatcher instead.
func SeedTimeline(t testing.TB, store *project.Store) *Fixture {
	t.Helper()
	ctx := context.Background()

	rate, err := timebase.NewRate(25, 1)
	if err != nil {
		t.Fatalf("timebase.NewRate: %v", err)
	}
	fx := &Fixture{
		ProjectID:    "proj-1",
		SequenceID:   "seq-1",
		VideoTrackID: "track-v1",
		AudioTrackID: "track-a1",
		MediaID:      "media-1",
		FrameRate:    rate,
	}

	if err := store.SaveProject(ctx, &project.Project{ID: fx.ProjectID, Name: "Test Project"}); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}
	if err := store.SaveSequence(ctx, &project.Sequence{
		ID:        fx.SequenceID,
		ProjectID: fx.ProjectID,
		Name:      "Timeline",
		Kind:      project.SequenceTimeline,
		Rate:      rate,
		Width:     1920,
		Height:    1080,
	}); err != nil {
		t.Fatalf("SaveSequence: %v", err)
	}
	if err := store.SaveTrack(ctx, &project.Track{
		ID: fx.VideoTrackID, SequenceID: fx.SequenceID,
		Type: project.TrackVideo, Index: 0, Enabled: true,
	}); err != nil {
		t.Fatalf("SaveTrack video: %v", err)
	}
	if err := store.SaveTrack(ctx, &project.Track{
		ID: fx.AudioTrackID, SequenceID: fx.SequenceID,
		Type: project.TrackAudio, Index: 0, Enabled: true,
	}); err != nil {
		t.Fatalf("SaveTrack audio: %v", err)
	}
	if err := store.SaveMedia(ctx, &project.Media{
		ID:            fx.MediaID,
		FileName:      "clip.mov",
		FilePath:      "/media/clip.mov",
		Duration:      10000,
		Rate:          rate,
		Width:         1920,
		Height:        1080,
		AudioChannels: 2,
		SampleRate:    48000,
	}); err != nil {
		t.Fatalf("SaveMedia: %v", err)
	}
	return fx
}

// Clip builds a timeline clip on the fixture's video track with source
// bounds matching the placement. Callers adjust fields as needed.
func (fx *Fixture) Clip(id string, start, duration int64) *project.Clip {
	return &project.Clip{
		ID:        id,
		Kind:      project.ClipTimeline,
		TrackID:   fx.VideoTrackID,
		MediaID:   fx.MediaID,
		Name:      id,
		Start:     start,
		Duration:  duration,
		SourceIn:  0,
		SourceOut: duration,
		Rate:      fx.FrameRate,
		Enabled:   true,
	}
}

// MustSaveClip persists a clip and fails the test on error.
func MustSaveClip(t testing.TB, store *project.Store, c *project.Clip) {
	t.Helper()
	if err := store.SaveClip(context.Background(), c); err != nil {
		t.Fatalf("SaveClip %s: %v", c.ID, err)
	}
}
