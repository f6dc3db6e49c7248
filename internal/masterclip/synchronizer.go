package masterclip

import (
	"context"
	"fmt"

	"cutplan/internal/project"
	"cutplan/internal/timebase"
)

// streamStore is the slice of the project store the synchronizer needs.
type streamStore interface {
	GetSequence(ctx context.Context, id string) (*project.Sequence, error)
	TracksBySequence(ctx context.Context, sequenceID string) ([]*project.Track, error)
	ClipsByTrack(ctx context.Context, trackID string) ([]*project.Clip, error)
	SaveClip(ctx context.Context, c *project.Clip) error
	SaveClipNoSnap(ctx context.Context, c *project.Clip) error
}

// Synchronizer lazily loads and caches the stream clips of one masterclip
// sequence. Call Invalidate after any stream clip mutation outside the
// synchronizer's own setters.
type Synchronizer struct {
	store      streamStore
	sequenceID string

	loaded    bool
	frameRate timebase.Rate
	video     *project.Clip
	audio     []*project.Clip
}

// New builds a synchronizer for the given masterclip sequence.
func New(store streamStore, sequenceID string) *Synchronizer {
	return &Synchronizer{store: store, sequenceID: sequenceID}
}

// Invalidate drops the cached stream clips; the next access reloads them.
func (s *Synchronizer) Invalidate() {
	s.loaded = false
	s.video = nil
	s.audio = nil
}

func (s *Synchronizer) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	seq, err := s.store.GetSequence(ctx, s.sequenceID)
	if err != nil {
		return err
	}
	if seq.Kind != project.SequenceMasterclip {
		return fmt.Errorf("sequence %s is %q, not a masterclip", seq.ID, seq.Kind)
	}
	s.frameRate = seq.Rate

	tracks, err := s.store.TracksBySequence(ctx, s.sequenceID)
	if err != nil {
		return err
	}

	s.video = nil
	s.audio = nil
	for _, tr := range tracks {
		clips, err := s.store.ClipsByTrack(ctx, tr.ID)
		if err != nil {
			return err
		}
		for _, c := range clips {
			switch tr.Type {
			case project.TrackVideo:
				if s.video != nil {
					return fmt.Errorf("masterclip %s holds more than one video stream clip", s.sequenceID)
				}
				s.video = c
			case project.TrackAudio:
				s.audio = append(s.audio, c)
			}
		}
	}
	s.loaded = true
	return nil
}

// VideoStream returns the cached video stream clip, nil when the media has
// no video.
func (s *Synchronizer) VideoStream(ctx context.Context) (*project.Clip, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.video, nil
}

// AudioStreams returns the cached audio stream clips in track order.
func (s *Synchronizer) AudioStreams(ctx context.Context) ([]*project.Clip, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.audio, nil
}

// SampleRate returns the first audio stream's rate. The media carries no
// audio when the second result is false.
func (s *Synchronizer) SampleRate(ctx context.Context) (timebase.Rate, bool, error) {
	if err := s.load(ctx); err != nil {
		return timebase.Rate{}, false, err
	}
	if len(s.audio) == 0 {
		return timebase.Rate{}, false, nil
	}
	return s.audio[0].Rate, true, nil
}

// FrameToSample converts a video frame position into the first audio
// stream's sample unit.
func (s *Synchronizer) FrameToSample(ctx context.Context, frame int64) (int64, error) {
	rate, ok, err := s.SampleRate(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("masterclip %s has no audio stream", s.sequenceID)
	}
	return timebase.Convert(frame, s.frameRate, rate), nil
}

// SampleToFrame converts a sample position of the first audio stream into
// video frames.
func (s *Synchronizer) SampleToFrame(ctx context.Context, sample int64) (int64, error) {
	rate, ok, err := s.SampleRate(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("masterclip %s has no audio stream", s.sequenceID)
	}
	return timebase.Convert(sample, rate, s.frameRate), nil
}

// SetAllStreamsIn writes the in mark, given in video frames, to every
// stream: the video stream directly, audio streams through frame-to-sample
// conversion. The streams stay logically synchronized afterwards.
func (s *Synchronizer) SetAllStreamsIn(ctx context.Context, frame int64) error {
	return s.setAllStreams(ctx, frame, func(c *project.Clip, v int64) { c.SourceIn = v })
}

// SetAllStreamsOut writes the out mark the same way.
func (s *Synchronizer) SetAllStreamsOut(ctx context.Context, frame int64) error {
	return s.setAllStreams(ctx, frame, func(c *project.Clip, v int64) { c.SourceOut = v })
}

func (s *Synchronizer) setAllStreams(ctx context.Context, frame int64, assign func(*project.Clip, int64)) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	defer s.Invalidate()

	if s.video != nil {
		clip := *s.video
		assign(&clip, frame)
		if err := clip.Validate(); err != nil {
			return err
		}
		if err := s.store.SaveClip(ctx, &clip); err != nil {
			return err
		}
	}
	for _, stream := range s.audio {
		clip := *stream
		assign(&clip, timebase.Convert(frame, s.frameRate, stream.Rate))
		if err := clip.Validate(); err != nil {
			return err
		}
		if err := s.store.SaveClipNoSnap(ctx, &clip); err != nil {
			return err
		}
	}
	return nil
}

// GetAllStreamsIn returns the shared in mark in video frames, or nil when
// any stream's derived bound disagrees (unsynced). It never guesses.
func (s *Synchronizer) GetAllStreamsIn(ctx context.Context) (*int64, error) {
	return s.getAllStreams(ctx, func(c *project.Clip) int64 { return c.SourceIn })
}

// GetAllStreamsOut returns the shared out mark the same way.
func (s *Synchronizer) GetAllStreamsOut(ctx context.Context) (*int64, error) {
	return s.getAllStreams(ctx, func(c *project.Clip) int64 { return c.SourceOut })
}

func (s *Synchronizer) getAllStreams(ctx context.Context, bound func(*project.Clip) int64) (*int64, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	var frame int64
	switch {
	case s.video != nil:
		frame = bound(s.video)
	case len(s.audio) > 0:
		frame = timebase.Convert(bound(s.audio[0]), s.audio[0].Rate, s.frameRate)
	default:
		return nil, fmt.Errorf("masterclip %s has no stream clips", s.sequenceID)
	}

	for _, stream := range s.audio {
		want := timebase.Convert(frame, s.frameRate, stream.Rate)
		if bound(stream) != want {
			return nil, nil
		}
	}
	return &frame, nil
}
