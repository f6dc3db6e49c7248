package edit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cutplan/internal/masterclip"
	"cutplan/internal/project"
	"cutplan/internal/timebase"
)

// masterclipChildID derives the id of a masterclip's track or stream clip
// from the sequence id, so replay recreates the identical subtree.
func masterclipChildID(sequenceID, role string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("masterclip:"+sequenceID+":"+role)).String()
}

func handleMasterclipCreate(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args MasterclipCreateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	media, err := tx.GetMedia(ctx, args.MediaID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.GetSequence(ctx, args.ID); err == nil {
		return nil, Wrap(ErrInvariant, "", fmt.Sprintf("sequence %s already exists", args.ID), nil)
	} else if !errors.Is(err, project.ErrNotFound) {
		return nil, err
	}
	if media.Duration <= 0 {
		return nil, Wrap(ErrValidation, "", fmt.Sprintf("media %s has no duration", media.ID), nil)
	}
	if media.Width <= 0 && media.AudioChannels <= 0 {
		return nil, Wrap(ErrValidation, "", fmt.Sprintf("media %s carries neither video nor audio", media.ID), nil)
	}

	name := args.Name
	if name == "" {
		name = media.FileName
	}
	seq := &project.Sequence{
		ID:        args.ID,
		ProjectID: args.ProjectID,
		Name:      name,
		Kind:      project.SequenceMasterclip,
		Rate:      media.Rate,
		Width:     media.Width,
		Height:    media.Height,
	}
	if err := tx.SaveSequence(ctx, seq); err != nil {
		return nil, err
	}

	res := &handlerResult{
		inverseType: CmdSequenceRemove,
		inverseArgs: &SequenceRemoveArgs{ID: seq.ID},
	}
	res.delta.created("sequence", seq.ID)

	if media.Width > 0 {
		track := &project.Track{
			ID:         masterclipChildID(seq.ID, "video-track"),
			SequenceID: seq.ID,
			Type:       project.TrackVideo,
			Index:      0,
			Enabled:    true,
		}
		if err := tx.SaveTrack(ctx, track); err != nil {
			return nil, err
		}
		clip := &project.Clip{
			ID:        masterclipChildID(seq.ID, "video-clip"),
			Kind:      project.ClipMaster,
			TrackID:   track.ID,
			MediaID:   media.ID,
			Name:      name,
			Start:     0,
			Duration:  media.Duration,
			SourceIn:  0,
			SourceOut: media.Duration,
			Rate:      media.Rate,
			Enabled:   true,
		}
		if err := tx.SaveClipNoSnap(ctx, clip); err != nil {
			return nil, err
		}
		res.delta.created("track", track.ID)
		res.delta.created("clip", clip.ID)
	}

	if media.AudioChannels > 0 {
		sampleRate, err := timebase.NewRate(int64(media.SampleRate), 1)
		if err != nil {
			return nil, Wrap(ErrValidation, "",
				fmt.Sprintf("media %s declares audio but no sample rate", media.ID), err)
		}
		samples := timebase.Convert(media.Duration, media.Rate, sampleRate)
		for ch := 0; ch < media.AudioChannels; ch++ {
			track := &project.Track{
				ID:         masterclipChildID(seq.ID, fmt.Sprintf("audio-track-%d", ch)),
				SequenceID: seq.ID,
				Type:       project.TrackAudio,
				Index:      ch,
				Enabled:    true,
			}
			if err := tx.SaveTrack(ctx, track); err != nil {
				return nil, err
			}
			clip := &project.Clip{
				ID:        masterclipChildID(seq.ID, fmt.Sprintf("audio-clip-%d", ch)),
				Kind:      project.ClipMaster,
				TrackID:   track.ID,
				MediaID:   media.ID,
				Name:      fmt.Sprintf("%s A%d", name, ch+1),
				Start:     0,
				Duration:  samples,
				SourceIn:  0,
				SourceOut: samples,
				Rate:      sampleRate,
				Enabled:   true,
			}
			if err := tx.SaveClipNoSnap(ctx, clip); err != nil {
				return nil, err
			}
			res.delta.created("track", track.ID)
			res.delta.created("clip", clip.ID)
		}
	}
	return res, nil
}

func handleMasterclipSetStreams(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error) {
	var args MasterclipSetStreamsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Frame < 0 {
		return nil, Wrap(ErrValidation, "", fmt.Sprintf("frame must be non-negative, got %d", args.Frame), nil)
	}

	pres, err := tx.ClipsBySequence(ctx, args.SequenceID)
	if err != nil {
		return nil, err
	}

	sync := masterclip.New(tx, args.SequenceID)
	switch args.Edge {
	case EdgeIn:
		err = sync.SetAllStreamsIn(ctx, args.Frame)
	case EdgeOut:
		err = sync.SetAllStreamsOut(ctx, args.Frame)
	default:
		return nil, Wrap(ErrValidation, "", fmt.Sprintf("unknown edge %q", args.Edge), nil)
	}
	if err != nil {
		return nil, Wrap(ErrValidation, "", "", err)
	}

	res := &handlerResult{
		inverseType: CmdClipRestoreSet,
		inverseArgs: &ClipRestoreSetArgs{Upsert: pres},
	}
	for _, c := range pres {
		res.delta.updated("clip", c.ID)
	}
	return res, nil
}
