package edit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cutplan/internal/occlusion"
	"cutplan/internal/project"
	"cutplan/internal/timebase"
)

func decodeArgs(raw json.RawMessage, into any) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return Wrap(ErrValidation, "", "decode args", err)
	}
	return nil
}

// requireUnlocked loads a track and rejects edits while it is locked.
func requireUnlocked(ctx context.Context, tx *project.Tx, trackID string) (*project.Track, error) {
	track, err := tx.GetTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if track.Locked {
		return nil, Wrap(ErrValidation, "", fmt.Sprintf("track %s is locked", trackID), nil)
	}
	return track, nil
}

// occlude clears the interval [start, start+duration) on a track for a
// placement, folding resident pre-images into the command's inverse and the
// side effects into its delta. Properties of fully occluded clips are
// captured before the cascade removes them.
func occlude(ctx context.Context, tx *project.Tx, trackID string, start, duration int64, ignore map[string]struct{}, inv *ClipRestoreSetArgs, delta *Delta) error {
	residents, err := tx.ClipsByTrack(ctx, trackID)
	if err != nil {
		return err
	}
	plan := occlusion.PlanPlacement(residents, start, duration, ignore)

	for _, pre := range plan.RemovedPre {
		props, err := tx.ClipProperties(ctx, pre.ID)
		if err != nil {
			return err
		}
		inv.Upsert = append(inv.Upsert, pre)
		inv.PropsUpsert = append(inv.PropsUpsert, props...)
		delta.removed("clip", pre.ID)
	}
	for _, pre := range plan.UpdatedPre {
		inv.Upsert = append(inv.Upsert, pre)
		delta.updated("clip", pre.ID)
	}
	for _, c := range plan.Create {
		inv.Delete = append(inv.Delete, c.ID)
		delta.created("clip", c.ID)
	}
	return occlusion.ApplyPlan(ctx, tx, plan)
}

// snapOnVideo aligns a track-unit value to the sequence frame grid when the
// track carries video. Audio values pass through untouched.
func snapOnVideo(ctx context.Context, tx *project.Tx, track *project.Track, clipRate timebase.Rate, v int64) (int64, error) {
	if track.Type != project.TrackVideo {
		return v, nil
	}
	seq, err := tx.GetSequence(ctx, track.SequenceID)
	if err != nil {
		return 0, err
	}
	return timebase.SnapToFrame(v, clipRate, seq.Rate), nil
}

func handleClipCreate(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ClipCreateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Clip == nil {
		return nil, Wrap(ErrValidation, "", "clip payload is required", nil)
	}
	clip := *args.Clip
	if clip.Kind == "" {
		clip.Kind = project.ClipTimeline
	}
	if _, err := tx.GetClip(ctx, clip.ID); err == nil {
		return nil, Wrap(ErrInvariant, "", fmt.Sprintf("clip %s already exists", clip.ID), nil)
	} else if !errors.Is(err, project.ErrNotFound) {
		return nil, err
	}
	if _, err := requireUnlocked(ctx, tx, clip.TrackID); err != nil {
		return nil, err
	}

	if err := tx.SaveClip(ctx, &clip); err != nil {
		return nil, err
	}
	// Re-read for the frame-aligned coordinates the occlusion pass needs.
	saved, err := tx.GetClip(ctx, clip.ID)
	if err != nil {
		return nil, err
	}

	res := &handlerResult{inverseType: CmdClipRestoreSet}
	inv := &ClipRestoreSetArgs{Delete: []string{saved.ID}}
	res.delta.created("clip", saved.ID)
	ignore := map[string]struct{}{saved.ID: {}}
	if err := occlude(ctx, tx, saved.TrackID, saved.Start, saved.Duration, ignore, inv, &res.delta); err != nil {
		return nil, err
	}
	res.inverseArgs = inv
	return res, nil
}

func handleClipDelete(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ClipDeleteArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	clip, err := tx.GetClip(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	if _, err := requireUnlocked(ctx, tx, clip.TrackID); err != nil {
		return nil, err
	}
	props, err := tx.ClipProperties(ctx, clip.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.DeleteClip(ctx, clip.ID); err != nil {
		return nil, err
	}

	res := &handlerResult{
		inverseType: CmdClipRestoreSet,
		inverseArgs: &ClipRestoreSetArgs{Upsert: []*project.Clip{clip}, PropsUpsert: props},
	}
	res.delta.removed("clip", clip.ID)
	return res, nil
}

func handleClipMove(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ClipMoveArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	clip, err := tx.GetClip(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	pre := *clip

	source, err := requireUnlocked(ctx, tx, clip.TrackID)
	if err != nil {
		return nil, err
	}
	target := source
	if args.TrackID != "" && args.TrackID != clip.TrackID {
		target, err = requireUnlocked(ctx, tx, args.TrackID)
		if err != nil {
			return nil, err
		}
		if target.Type != source.Type {
			return nil, Wrap(ErrValidation, "",
				fmt.Sprintf("cannot move %s clip to %s track", source.Type, target.Type), nil)
		}
		clip.TrackID = target.ID
	}
	if args.Start < 0 {
		return nil, Wrap(ErrValidation, "", fmt.Sprintf("start must be non-negative, got %d", args.Start), nil)
	}
	clip.Start = args.Start

	if err := tx.SaveClip(ctx, clip); err != nil {
		return nil, err
	}
	saved, err := tx.GetClip(ctx, clip.ID)
	if err != nil {
		return nil, err
	}

	res := &handlerResult{inverseType: CmdClipRestoreSet}
	inv := &ClipRestoreSetArgs{Upsert: []*project.Clip{&pre}}
	res.delta.updated("clip", saved.ID)
	ignore := map[string]struct{}{saved.ID: {}}
	if err := occlude(ctx, tx, saved.TrackID, saved.Start, saved.Duration, ignore, inv, &res.delta); err != nil {
		return nil, err
	}
	res.inverseArgs = inv
	return res, nil
}

func handleClipTrim(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ClipTrimArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	clip, err := tx.GetClip(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	track, err := requireUnlocked(ctx, tx, clip.TrackID)
	if err != nil {
		return nil, err
	}
	pre := *clip

	pos, err := snapOnVideo(ctx, tx, track, clip.Rate, args.Position)
	if err != nil {
		return nil, err
	}
	switch args.Edge {
	case EdgeIn:
		if pos >= clip.End() {
			return nil, Wrap(ErrValidation, "",
				fmt.Sprintf("in point %d must stay before clip end %d", pos, clip.End()), nil)
		}
		shift := pos - clip.Start
		clip.Start = pos
		clip.Duration -= shift
		clip.SourceIn += shift
	case EdgeOut:
		if pos <= clip.Start {
			return nil, Wrap(ErrValidation, "",
				fmt.Sprintf("out point %d must stay after clip start %d", pos, clip.Start), nil)
		}
		grow := pos - clip.End()
		clip.Duration += grow
		clip.SourceOut += grow
	default:
		return nil, Wrap(ErrValidation, "", fmt.Sprintf("unknown edge %q", args.Edge), nil)
	}
	if err := clip.Validate(); err != nil {
		return nil, Wrap(ErrValidation, "", "", err)
	}
	if err := tx.SaveClipNoSnap(ctx, clip); err != nil {
		return nil, err
	}

	res := &handlerResult{inverseType: CmdClipRestoreSet}
	inv := &ClipRestoreSetArgs{Upsert: []*project.Clip{&pre}}
	res.delta.updated("clip", clip.ID)
	ignore := map[string]struct{}{clip.ID: {}}
	if err := occlude(ctx, tx, clip.TrackID, clip.Start, clip.Duration, ignore, inv, &res.delta); err != nil {
		return nil, err
	}
	res.inverseArgs = inv
	return res, nil
}

func handleClipSplit(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ClipSplitArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	clip, err := tx.GetClip(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	track, err := requireUnlocked(ctx, tx, clip.TrackID)
	if err != nil {
		return nil, err
	}
	pre := *clip

	pos, err := snapOnVideo(ctx, tx, track, clip.Rate, args.Position)
	if err != nil {
		return nil, err
	}
	if pos <= clip.Start || pos >= clip.End() {
		return nil, Wrap(ErrValidation, "",
			fmt.Sprintf("split position %d must fall strictly inside [%d, %d)", pos, clip.Start, clip.End()), nil)
	}

	cut := pos - clip.Start
	tail := *clip
	tail.ID = occlusion.SplitID(clip.ID, pos)
	tail.Start = pos
	tail.Duration = clip.Duration - cut
	tail.SourceIn = clip.SourceIn + cut

	clip.Duration = cut
	clip.SourceOut = pre.SourceOut - tail.Duration

	if err := tx.SaveClipNoSnap(ctx, clip); err != nil {
		return nil, err
	}
	if err := tx.SaveClipNoSnap(ctx, &tail); err != nil {
		return nil, err
	}

	res := &handlerResult{
		inverseType: CmdClipRestoreSet,
		inverseArgs: &ClipRestoreSetArgs{
			Delete: []string{tail.ID},
			Upsert: []*project.Clip{&pre},
		},
	}
	res.delta.updated("clip", clip.ID)
	res.delta.created("clip", tail.ID)
	return res, nil
}

func handleClipRippleDelete(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ClipRippleDeleteArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	clip, err := tx.GetClip(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	if _, err := requireUnlocked(ctx, tx, clip.TrackID); err != nil {
		return nil, err
	}
	props, err := tx.ClipProperties(ctx, clip.ID)
	if err != nil {
		return nil, err
	}
	residents, err := tx.ClipsByTrack(ctx, clip.TrackID)
	if err != nil {
		return nil, err
	}
	if err := tx.DeleteClip(ctx, clip.ID); err != nil {
		return nil, err
	}

	res := &handlerResult{inverseType: CmdClipRestoreSet}
	inv := &ClipRestoreSetArgs{Upsert: []*project.Clip{clip}, PropsUpsert: props}
	res.delta.removed("clip", clip.ID)

	// Close the gap: everything at or past the removed clip's end shifts
	// left by its duration.
	for _, r := range residents {
		if r.ID == clip.ID || r.Start < clip.End() {
			continue
		}
		shifted := *r
		shifted.Start -= clip.Duration
		inv.Upsert = append(inv.Upsert, r)
		res.delta.updated("clip", r.ID)
		if err := tx.SaveClipNoSnap(ctx, &shifted); err != nil {
			return nil, err
		}
	}
	res.inverseArgs = inv
	return res, nil
}

func handleClipRippleTrim(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ClipRippleTrimArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	clip, err := tx.GetClip(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	track, err := requireUnlocked(ctx, tx, clip.TrackID)
	if err != nil {
		return nil, err
	}
	pre := *clip
	oldEnd := clip.End()

	delta, err := snapOnVideo(ctx, tx, track, clip.Rate, args.Delta)
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, Wrap(ErrValidation, "", "delta must be non-zero", nil)
	}

	// The downstream shift keeps following clips contiguous with the edit:
	// growing the out point pushes them right, trimming the in point pulls
	// them left.
	var shift int64
	switch args.Edge {
	case EdgeOut:
		clip.Duration += delta
		clip.SourceOut += delta
		shift = delta
	case EdgeIn:
		clip.Duration -= delta
		clip.SourceIn += delta
		shift = -delta
	default:
		return nil, Wrap(ErrValidation, "", fmt.Sprintf("unknown edge %q", args.Edge), nil)
	}
	if err := clip.Validate(); err != nil {
		return nil, Wrap(ErrValidation, "", "", err)
	}

	residents, err := tx.ClipsByTrack(ctx, clip.TrackID)
	if err != nil {
		return nil, err
	}
	if err := tx.SaveClipNoSnap(ctx, clip); err != nil {
		return nil, err
	}

	res := &handlerResult{inverseType: CmdClipRestoreSet}
	inv := &ClipRestoreSetArgs{Upsert: []*project.Clip{&pre}}
	res.delta.updated("clip", clip.ID)

	for _, r := range residents {
		if r.ID == clip.ID || r.Start < oldEnd {
			continue
		}
		shifted := *r
		shifted.Start += shift
		inv.Upsert = append(inv.Upsert, r)
		res.delta.updated("clip", r.ID)
		if err := tx.SaveClipNoSnap(ctx, &shifted); err != nil {
			return nil, err
		}
	}
	res.inverseArgs = inv
	return res, nil
}

func handleClipRoll(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ClipRollArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	left, err := tx.GetClip(ctx, args.LeftID)
	if err != nil {
		return nil, err
	}
	right, err := tx.GetClip(ctx, args.RightID)
	if err != nil {
		return nil, err
	}
	if left.TrackID != right.TrackID {
		return nil, Wrap(ErrValidation, "", "roll requires clips on the same track", nil)
	}
	if left.End() != right.Start {
		return nil, Wrap(ErrValidation, "",
			fmt.Sprintf("clips are not adjacent: left ends at %d, right starts at %d", left.End(), right.Start), nil)
	}
	track, err := requireUnlocked(ctx, tx, left.TrackID)
	if err != nil {
		return nil, err
	}

	delta, err := snapOnVideo(ctx, tx, track, left.Rate, args.Delta)
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, Wrap(ErrValidation, "", "delta must be non-zero", nil)
	}
	edge := left.End() + delta
	if edge <= left.Start || edge >= right.End() {
		return nil, Wrap(ErrValidation, "",
			fmt.Sprintf("rolled edge %d must stay inside (%d, %d)", edge, left.Start, right.End()), nil)
	}

	preLeft, preRight := *left, *right

	left.Duration += delta
	left.SourceOut += delta
	right.Start = edge
	right.Duration -= delta
	right.SourceIn += delta

	if err := left.Validate(); err != nil {
		return nil, Wrap(ErrValidation, "", "", err)
	}
	if err := right.Validate(); err != nil {
		return nil, Wrap(ErrValidation, "", "", err)
	}
	if err := tx.SaveClipNoSnap(ctx, left); err != nil {
		return nil, err
	}
	if err := tx.SaveClipNoSnap(ctx, right); err != nil {
		return nil, err
	}

	res := &handlerResult{
		inverseType: CmdClipRestoreSet,
		inverseArgs: &ClipRestoreSetArgs{Upsert: []*project.Clip{&preLeft, &preRight}},
	}
	res.delta.updated("clip", left.ID)
	res.delta.updated("clip", right.ID)
	return res, nil
}

func handleClipSetProperty(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ClipSetPropertyArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Key == "" {
		return nil, Wrap(ErrValidation, "", "property key is required", nil)
	}
	if _, err := tx.GetClip(ctx, args.ClipID); err != nil {
		return nil, err
	}

	inverse := ClipSetPropertyArgs{ClipID: args.ClipID, Key: args.Key}
	prior, err := tx.GetClipProperty(ctx, args.ClipID, args.Key)
	switch {
	case err == nil:
		inverse.ValueJSON = &prior
	case errors.Is(err, project.ErrNotFound):
		// No prior value: the inverse deletes the key.
	default:
		return nil, err
	}

	if args.ValueJSON == nil {
		if err := tx.DeleteClipProperty(ctx, args.ClipID, args.Key); err != nil {
			return nil, err
		}
	} else {
		if !json.Valid([]byte(*args.ValueJSON)) {
			return nil, Wrap(ErrValidation, "", fmt.Sprintf("property %s value is not valid JSON", args.Key), nil)
		}
		if err := tx.SetClipProperty(ctx, args.ClipID, args.Key, *args.ValueJSON); err != nil {
			return nil, err
		}
	}

	res := &handlerResult{inverseType: CmdClipSetProperty, inverseArgs: &inverse}
	res.delta.updated("clip", args.ClipID)
	return res, nil
}

// handleClipRestoreSet reinstates exact clip and property pre-images. Only
// ever executed as the inverse of a clip command, so its own inverse is
// never consulted.
func handleClipRestoreSet(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ClipRestoreSetArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	res := &handlerResult{inverseType: CmdClipRestoreSet, inverseArgs: &ClipRestoreSetArgs{}}
	for _, id := range args.Delete {
		if err := tx.DeleteClip(ctx, id); err != nil {
			return nil, err
		}
		res.delta.removed("clip", id)
	}
	for _, clip := range args.Upsert {
		if err := tx.SaveClipNoSnap(ctx, clip); err != nil {
			return nil, err
		}
		res.delta.updated("clip", clip.ID)
	}
	for _, p := range args.PropsUpsert {
		if err := tx.SetClipProperty(ctx, p.ClipID, p.Key, p.ValueJSON); err != nil {
			return nil, err
		}
	}
	for _, ref := range args.PropsDelete {
		if err := tx.DeleteClipProperty(ctx, ref.ClipID, ref.Key); err != nil {
			return nil, err
		}
	}
	return res, nil
}
