package edit

import (
	"cutplan/internal/project"
	"cutplan/internal/timebase"
)

// Argument payloads for each command type. Every payload marshals with a
// fixed field order, so identical inputs always log identical args JSON and
// replay re-reads exactly what was executed.

// TrimEdge selects which end of a clip an edge operation works on.
type TrimEdge string

const (
	EdgeIn  TrimEdge = "in"
	EdgeOut TrimEdge = "out"
)

// ProjectCreateArgs bootstraps the single project a file holds.
type ProjectCreateArgs struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SettingsJSON string `json:"settings_json,omitempty"`
}

// ProjectRemoveArgs deletes a project tree. Primarily the inverse of
// project.create.
type ProjectRemoveArgs struct {
	ID string `json:"id"`
}

// SequenceCreateArgs adds an empty timeline or masterclip sequence.
type SequenceCreateArgs struct {
	ID        string               `json:"id"`
	ProjectID string               `json:"project_id"`
	Name      string               `json:"name"`
	Kind      project.SequenceKind `json:"kind"`
	Rate      timebase.Rate        `json:"rate"`
	Width     int                  `json:"width"`
	Height    int                  `json:"height"`
}

// SequenceRemoveArgs deletes a sequence and its subtree.
type SequenceRemoveArgs struct {
	ID string `json:"id"`
}

// TrackCreateArgs adds a track to a sequence.
type TrackCreateArgs struct {
	ID         string            `json:"id"`
	SequenceID string            `json:"sequence_id"`
	Type       project.TrackType `json:"type"`
	Index      int               `json:"index"`
}

// TrackRemoveArgs deletes a track and its clips.
type TrackRemoveArgs struct {
	ID string `json:"id"`
}

// MediaRegisterArgs records an imported file.
type MediaRegisterArgs struct {
	Media *project.Media `json:"media"`
}

// MediaRemoveArgs drops a media record. Fails while clips reference it.
type MediaRemoveArgs struct {
	ID string `json:"id"`
}

// MasterclipCreateArgs builds the synthetic masterclip sequence for a media
// record: one video stream clip when the media has picture, one audio
// stream clip per channel. Child track and clip ids derive from the
// sequence id, so replay recreates the identical subtree.
type MasterclipCreateArgs struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	MediaID   string `json:"media_id"`
	Name      string `json:"name"`
}

// ClipCreateArgs places a new clip on a track. Residents overlapping the
// placement are occluded.
type ClipCreateArgs struct {
	Clip *project.Clip `json:"clip"`
}

// ClipDeleteArgs removes a clip, leaving a gap.
type ClipDeleteArgs struct {
	ID string `json:"id"`
}

// ClipMoveArgs repositions a clip, optionally onto another track. Residents
// overlapping the destination are occluded.
type ClipMoveArgs struct {
	ID      string `json:"id"`
	Start   int64  `json:"start"`
	TrackID string `json:"track_id,omitempty"`
}

// ClipTrimArgs sets one edge of a clip to a new timeline position. The
// source range follows the edge so the visible content stays anchored.
type ClipTrimArgs struct {
	ID       string   `json:"id"`
	Edge     TrimEdge `json:"edge"`
	Position int64    `json:"position"`
}

// ClipSplitArgs blades a clip at a timeline position strictly inside it.
// The remainder clip's id derives from the parent id and the cut position.
type ClipSplitArgs struct {
	ID       string `json:"id"`
	Position int64  `json:"position"`
}

// ClipRippleDeleteArgs removes a clip and shifts everything after it on the
// same track left to close the gap.
type ClipRippleDeleteArgs struct {
	ID string `json:"id"`
}

// ClipRippleTrimArgs resizes a clip edge by delta units and shifts the
// downstream clips on the track to keep them contiguous with the change.
type ClipRippleTrimArgs struct {
	ID    string   `json:"id"`
	Edge  TrimEdge `json:"edge"`
	Delta int64    `json:"delta"`
}

// ClipRollArgs moves the shared cut between two adjacent clips by delta
// units. Total track duration is unchanged.
type ClipRollArgs struct {
	LeftID  string `json:"left_id"`
	RightID string `json:"right_id"`
	Delta   int64  `json:"delta"`
}

// ClipSetPropertyArgs writes or clears one clip property. A nil value
// deletes the key.
type ClipSetPropertyArgs struct {
	ClipID    string  `json:"clip_id"`
	Key       string  `json:"key"`
	ValueJSON *string `json:"value_json,omitempty"`
}

// SequenceSetStateArgs updates a sequence's session fields. Only non-nil
// fields are written; mark fields use the Set flags so a mark can be
// cleared explicitly.
type SequenceSetStateArgs struct {
	SequenceID string  `json:"sequence_id"`
	Name       *string `json:"name,omitempty"`
	Playhead   *int64  `json:"playhead,omitempty"`
	ViewStart  *int64  `json:"view_start,omitempty"`
	ViewEnd    *int64  `json:"view_end,omitempty"`
	SetMarkIn  bool    `json:"set_mark_in,omitempty"`
	MarkIn     *int64  `json:"mark_in,omitempty"`
	SetMarkOut bool    `json:"set_mark_out,omitempty"`
	MarkOut    *int64  `json:"mark_out,omitempty"`
	Selection  *string `json:"selection,omitempty"`
}

// MasterclipSetStreamsArgs moves the shared in or out mark of every stream
// clip in a masterclip sequence. Frame is in the sequence's video rate.
type MasterclipSetStreamsArgs struct {
	SequenceID string   `json:"sequence_id"`
	Edge       TrimEdge `json:"edge"`
	Frame      int64    `json:"frame"`
}

// PropertyRef names one clip property.
type PropertyRef struct {
	ClipID string `json:"clip_id"`
	Key    string `json:"key"`
}

// ClipRestoreSetArgs is the generic inverse payload for clip-level
// commands: delete the listed clips, then reinstate the recorded clip and
// property pre-images verbatim. Clips restore without re-snapping.
type ClipRestoreSetArgs struct {
	Delete      []string            `json:"delete,omitempty"`
	Upsert      []*project.Clip     `json:"upsert,omitempty"`
	PropsUpsert []*project.Property `json:"props_upsert,omitempty"`
	PropsDelete []PropertyRef       `json:"props_delete,omitempty"`
}

// TreeRestoreArgs is the inverse payload for structural removals: it holds
// the full pre-image of the removed subtree and reinstates it in dependency
// order.
type TreeRestoreArgs struct {
	Project    *project.Project    `json:"project,omitempty"`
	Sequences  []*project.Sequence `json:"sequences,omitempty"`
	Tracks     []*project.Track    `json:"tracks,omitempty"`
	Media      []*project.Media    `json:"media,omitempty"`
	Clips      []*project.Clip     `json:"clips,omitempty"`
	Properties []*project.Property `json:"properties,omitempty"`
}
