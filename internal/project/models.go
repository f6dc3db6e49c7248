package project

import (
	"fmt"
	"time"

	"cutplan/internal/timebase"
)

// SequenceKind distinguishes user-editable timelines from synthetic
// masterclip containers.
type SequenceKind string

const (
	SequenceTimeline   SequenceKind = "timeline"
	SequenceMasterclip SequenceKind = "masterclip"
)

// TrackType is the unit family of a track: frames for video, samples for audio.
type TrackType string

const (
	TrackVideo TrackType = "video"
	TrackAudio TrackType = "audio"
)

// ClipKind separates timeline clips from the stream clips owned by a
// masterclip sequence.
type ClipKind string

const (
	ClipTimeline ClipKind = "timeline"
	ClipMaster   ClipKind = "master"
)

// Project is the root entity of a project file.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	SettingsJSON string    `json:"settings_json"`
}

// Sequence is a timeline or masterclip container owning tracks.
type Sequence struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id"`
	Name          string        `json:"name"`
	Kind          SequenceKind  `json:"kind"`
	Rate          timebase.Rate `json:"rate"`
	Width         int           `json:"width"`
	Height        int           `json:"height"`
	Playhead      int64         `json:"playhead"`
	ViewStart     int64         `json:"view_start"`
	ViewEnd       int64         `json:"view_end"`
	MarkIn        *int64        `json:"mark_in,omitempty"`
	MarkOut       *int64        `json:"mark_out,omitempty"`
	SelectionJSON string        `json:"selection_json"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Track orders clips inside a sequence. Index is unique per sequence+type;
// lower index means higher visual or mix priority.
type Track struct {
	ID         string    `json:"id"`
	SequenceID string    `json:"sequence_id"`
	Type       TrackType `json:"type"`
	Index      int       `json:"index"`
	Enabled    bool      `json:"enabled"`
	Locked     bool      `json:"locked"`
}

// Clip occupies [Start, Start+Duration) on its track, in the track's base
// unit. Source bounds select the media range in the clip's own rate.
type Clip struct {
	ID           string        `json:"id"`
	Kind         ClipKind      `json:"kind"`
	TrackID      string        `json:"track_id"`
	MediaID      string        `json:"media_id"`
	MasterClipID string        `json:"master_clip_id,omitempty"`
	Name         string        `json:"name"`
	Start        int64         `json:"start"`
	Duration     int64         `json:"duration"`
	SourceIn     int64         `json:"source_in"`
	SourceOut    int64         `json:"source_out"`
	Rate         timebase.Rate `json:"rate"`
	Enabled      bool          `json:"enabled"`
	Offline      bool          `json:"offline"`
}

// End returns the exclusive end position of the clip on its track.
func (c *Clip) End() int64 {
	return c.Start + c.Duration
}

// Validate enforces the construction invariants on a clip.
func (c *Clip) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("clip id is required")
	}
	if c.Kind != ClipTimeline && c.Kind != ClipMaster {
		return fmt.Errorf("clip %s: unknown kind %q", c.ID, c.Kind)
	}
	if c.TrackID == "" {
		return fmt.Errorf("clip %s: track id is required", c.ID)
	}
	if c.MediaID == "" {
		return fmt.Errorf("clip %s: media id is required", c.ID)
	}
	if !c.Rate.Valid() {
		return fmt.Errorf("clip %s: %w: %s", c.ID, timebase.ErrInvalidRate, c.Rate)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("clip %s: duration must be positive, got %d", c.ID, c.Duration)
	}
	if c.SourceOut <= c.SourceIn {
		return fmt.Errorf("clip %s: source_out %d must exceed source_in %d", c.ID, c.SourceOut, c.SourceIn)
	}
	return nil
}

// Media describes an imported file. Referenced by clips, owned by nobody.
type Media struct {
	ID            string        `json:"id"`
	FileName      string        `json:"file_name"`
	FilePath      string        `json:"file_path"`
	Duration      int64         `json:"duration"`
	Rate          timebase.Rate `json:"rate"`
	Width         int           `json:"width"`
	Height        int           `json:"height"`
	AudioChannels int           `json:"audio_channels"`
	SampleRate    int           `json:"sample_rate"`
}

// Property is one typed key/value pair attached to a clip. Values are JSON
// at the persistence edge only.
type Property struct {
	ClipID    string `json:"clip_id"`
	Key       string `json:"key"`
	ValueJSON string `json:"value_json"`
}

// Command is one committed entry of the append-only log. Immutable once
// written.
type Command struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parent_id,omitempty"`
	Seq         int64     `json:"seq"`
	Type        string    `json:"type"`
	ArgsJSON    string    `json:"args_json"`
	InverseType string    `json:"inverse_type"`
	InverseJSON string    `json:"inverse_json"`
	PreHash     string    `json:"pre_hash"`
	PostHash    string    `json:"post_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Snapshot is a compressed full-state checkpoint covering the log up to and
// including Seq.
type Snapshot struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Blob      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
