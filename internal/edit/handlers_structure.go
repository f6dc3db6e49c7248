package edit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cutplan/internal/project"
)

func handleProjectCreate(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ProjectCreateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if _, err := tx.FirstProject(ctx); err == nil {
		return nil, Wrap(ErrInvariant, "", "project file already holds a project", nil)
	} else if !errors.Is(err, project.ErrNotFound) {
		return nil, err
	}
	proj := &project.Project{ID: args.ID, Name: args.Name, SettingsJSON: args.SettingsJSON}
	if err := tx.SaveProject(ctx, proj); err != nil {
		return nil, err
	}

	res := &handlerResult{
		inverseType: CmdProjectRemove,
		inverseArgs: &ProjectRemoveArgs{ID: proj.ID},
	}
	res.delta.created("project", proj.ID)
	return res, nil
}

func handleProjectRemove(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args ProjectRemoveArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	state, err := tx.DumpState(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.DeleteProject(ctx, args.ID); err != nil {
		return nil, err
	}

	// Media records survive a project removal; the inverse leaves them out.
	res := &handlerResult{
		inverseType: CmdTreeRestore,
		inverseArgs: &TreeRestoreArgs{
			Project:    state.Project,
			Sequences:  state.Sequences,
			Tracks:     state.Tracks,
			Clips:      state.Clips,
			Properties: state.Properties,
		},
	}
	res.delta.removed("project", args.ID)
	return res, nil
}

func handleSequenceCreate(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args SequenceCreateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if _, err := tx.GetProject(ctx, args.ProjectID); err != nil {
		return nil, err
	}
	if _, err := tx.GetSequence(ctx, args.ID); err == nil {
		return nil, Wrap(ErrInvariant, "", fmt.Sprintf("sequence %s already exists", args.ID), nil)
	} else if !errors.Is(err, project.ErrNotFound) {
		return nil, err
	}
	kind := args.Kind
	if kind == "" {
		kind = project.SequenceTimeline
	}
	seq := &project.Sequence{
		ID:        args.ID,
		ProjectID: args.ProjectID,
		Name:      args.Name,
		Kind:      kind,
		Rate:      args.Rate,
		Width:     args.Width,
		Height:    args.Height,
	}
	if err := tx.SaveSequence(ctx, seq); err != nil {
		return nil, err
	}

	res := &handlerResult{
		inverseType: CmdSequenceRemove,
		inverseArgs: &SequenceRemoveArgs{ID: seq.ID},
	}
	res.delta.created("sequence", seq.ID)
	return res, nil
}

func handleSequenceRemove(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args SequenceRemoveArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	seq, err := tx.GetSequence(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	if seq.Kind == project.SequenceMasterclip {
		refs, err := tx.ClipsByMasterClip(ctx, seq.ID)
		if err != nil {
			return nil, err
		}
		if len(refs) > 0 {
			return nil, Wrap(ErrInvariant, "",
				fmt.Sprintf("masterclip %s is referenced by %d timeline clips", seq.ID, len(refs)), nil)
		}
	}

	tracks, err := tx.TracksBySequence(ctx, seq.ID)
	if err != nil {
		return nil, err
	}
	clips, err := tx.ClipsBySequence(ctx, seq.ID)
	if err != nil {
		return nil, err
	}
	var props []*project.Property
	for _, c := range clips {
		p, err := tx.ClipProperties(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		props = append(props, p...)
	}
	if err := tx.DeleteSequence(ctx, seq.ID); err != nil {
		return nil, err
	}

	res := &handlerResult{
		inverseType: CmdTreeRestore,
		inverseArgs: &TreeRestoreArgs{
			Sequences:  []*project.Sequence{seq},
			Tracks:     tracks,
			Clips:      clips,
			Properties: props,
		},
	}
	res.delta.removed("sequence", seq.ID)
	for _, tr := range tracks {
		res.delta.removed("track", tr.ID)
	}
	for _, c := range clips {
		res.delta.removed("clip", c.ID)
	}
	return res, nil
}

func handleSequenceSetState(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args SequenceSetStateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	seq, err := tx.GetSequence(ctx, args.SequenceID)
	if err != nil {
		return nil, err
	}

	// The inverse mirrors exactly the fields this call touches, with their
	// prior values.
	inverse := SequenceSetStateArgs{SequenceID: seq.ID}
	if args.Name != nil {
		prior := seq.Name
		inverse.Name = &prior
		seq.Name = *args.Name
	}
	if args.Playhead != nil {
		prior := seq.Playhead
		inverse.Playhead = &prior
		seq.Playhead = *args.Playhead
	}
	if args.ViewStart != nil {
		prior := seq.ViewStart
		inverse.ViewStart = &prior
		seq.ViewStart = *args.ViewStart
	}
	if args.ViewEnd != nil {
		prior := seq.ViewEnd
		inverse.ViewEnd = &prior
		seq.ViewEnd = *args.ViewEnd
	}
	if args.SetMarkIn {
		inverse.SetMarkIn = true
		inverse.MarkIn = seq.MarkIn
		seq.MarkIn = args.MarkIn
	}
	if args.SetMarkOut {
		inverse.SetMarkOut = true
		inverse.MarkOut = seq.MarkOut
		seq.MarkOut = args.MarkOut
	}
	if args.Selection != nil {
		prior := seq.SelectionJSON
		inverse.Selection = &prior
		if !json.Valid([]byte(*args.Selection)) {
			return nil, Wrap(ErrValidation, "", "selection is not valid JSON", nil)
		}
		seq.SelectionJSON = *args.Selection
	}

	if seq.Playhead < 0 {
		return nil, Wrap(ErrValidation, "", fmt.Sprintf("playhead must be non-negative, got %d", seq.Playhead), nil)
	}
	if seq.ViewEnd < seq.ViewStart {
		return nil, Wrap(ErrValidation, "",
			fmt.Sprintf("view end %d precedes view start %d", seq.ViewEnd, seq.ViewStart), nil)
	}
	if seq.MarkIn != nil && seq.MarkOut != nil && *seq.MarkOut < *seq.MarkIn {
		return nil, Wrap(ErrValidation, "",
			fmt.Sprintf("mark out %d precedes mark in %d", *seq.MarkOut, *seq.MarkIn), nil)
	}

	if err := tx.SaveSequence(ctx, seq); err != nil {
		return nil, err
	}

	res := &handlerResult{inverseType: CmdSequenceSetState, inverseArgs: &inverse}
	res.delta.updated("sequence", seq.ID)
	return res, nil
}

func handleTrackCreate(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args TrackCreateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if _, err := tx.GetSequence(ctx, args.SequenceID); err != nil {
		return nil, err
	}
	if _, err := tx.GetTrack(ctx, args.ID); err == nil {
		return nil, Wrap(ErrInvariant, "", fmt.Sprintf("track %s already exists", args.ID), nil)
	} else if !errors.Is(err, project.ErrNotFound) {
		return nil, err
	}
	track := &project.Track{
		ID:         args.ID,
		SequenceID: args.SequenceID,
		Type:       args.Type,
		Index:      args.Index,
		Enabled:    true,
	}
	if err := tx.SaveTrack(ctx, track); err != nil {
		return nil, err
	}

	res := &handlerResult{
		inverseType: CmdTrackRemove,
		inverseArgs: &TrackRemoveArgs{ID: track.ID},
	}
	res.delta.created("track", track.ID)
	return res, nil
}

func handleTrackRemove(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args TrackRemoveArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	track, err := tx.GetTrack(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	clips, err := tx.ClipsByTrack(ctx, track.ID)
	if err != nil {
		return nil, err
	}
	var props []*project.Property
	for _, c := range clips {
		p, err := tx.ClipProperties(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		props = append(props, p...)
	}
	if err := tx.DeleteTrack(ctx, track.ID); err != nil {
		return nil, err
	}

	res := &handlerResult{
		inverseType: CmdTreeRestore,
		inverseArgs: &TreeRestoreArgs{
			Tracks:     []*project.Track{track},
			Clips:      clips,
			Properties: props,
		},
	}
	res.delta.removed("track", track.ID)
	for _, c := range clips {
		res.delta.removed("clip", c.ID)
	}
	return res, nil
}

func handleMediaRegister(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args MediaRegisterArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Media == nil {
		return nil, Wrap(ErrValidation, "", "media payload is required", nil)
	}
	if _, err := tx.GetMedia(ctx, args.Media.ID); err == nil {
		return nil, Wrap(ErrInvariant, "", fmt.Sprintf("media %s is already registered", args.Media.ID), nil)
	} else if !errors.Is(err, project.ErrNotFound) {
		return nil, err
	}
	if err := tx.SaveMedia(ctx, args.Media); err != nil {
		return nil, err
	}

	res := &handlerResult{
		inverseType: CmdMediaRemove,
		inverseArgs: &MediaRemoveArgs{ID: args.Media.ID},
	}
	res.delta.created("media", args.Media.ID)
	return res, nil
}

func handleMediaRemove(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args MediaRemoveArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	media, err := tx.GetMedia(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	refs, err := tx.ClipsByMedia(ctx, media.ID)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		return nil, Wrap(ErrInvariant, "",
			fmt.Sprintf("media %s is referenced by %d clips", media.ID, len(refs)), nil)
	}
	if err := tx.DeleteMedia(ctx, media.ID); err != nil {
		return nil, err
	}

	res := &handlerResult{
		inverseType: CmdMediaRegister,
		inverseArgs: &MediaRegisterArgs{Media: media},
	}
	res.delta.removed("media", media.ID)
	return res, nil
}

// handleTreeRestore reinstates a removed subtree in dependency order. Only
// ever executed as the inverse of a structural removal.
func handleTreeRestore(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args TreeRestoreArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	res := &handlerResult{inverseType: CmdTreeRestore, inverseArgs: &TreeRestoreArgs{}}
	if args.Project != nil {
		if err := tx.SaveProject(ctx, args.Project); err != nil {
			return nil, err
		}
		res.delta.created("project", args.Project.ID)
	}
	for _, seq := range args.Sequences {
		if err := tx.SaveSequence(ctx, seq); err != nil {
			return nil, err
		}
		res.delta.created("sequence", seq.ID)
	}
	for _, tr := range args.Tracks {
		if err := tx.SaveTrack(ctx, tr); err != nil {
			return nil, err
		}
		res.delta.created("track", tr.ID)
	}
	for _, m := range args.Media {
		if err := tx.SaveMedia(ctx, m); err != nil {
			return nil, err
		}
		res.delta.created("media", m.ID)
	}
	for _, c := range args.Clips {
		if err := tx.SaveClipNoSnap(ctx, c); err != nil {
			return nil, err
		}
		res.delta.created("clip", c.ID)
	}
	for _, p := range args.Properties {
		if err := tx.SetClipProperty(ctx, p.ClipID, p.Key, p.ValueJSON); err != nil {
			return nil, err
		}
	}
	return res, nil
}
