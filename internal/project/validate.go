package project

import (
	"context"
	"fmt"
)

// Issue is one integrity finding reported by Validate.
type Issue struct {
	Entity  string
	ID      string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Entity, i.ID, i.Message)
}

// Validate checks the structural invariants of a project tree: no
// overlapping enabled clips per track, sane sequence marks, a gap-free
// command log, and an undo pointer inside the log. An empty result means
// the file is consistent.
func (s *Store) Validate(ctx context.Context, projectID string) ([]Issue, error) {
	var issues []Issue

	sequences, err := s.SequencesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, seq := range sequences {
		if seq.MarkIn != nil && seq.MarkOut != nil && *seq.MarkOut <= *seq.MarkIn {
			issues = append(issues, Issue{
				Entity:  "sequence",
				ID:      seq.ID,
				Message: fmt.Sprintf("mark_out %d does not exceed mark_in %d", *seq.MarkOut, *seq.MarkIn),
			})
		}

		tracks, err := s.TracksBySequence(ctx, seq.ID)
		if err != nil {
			return nil, err
		}
		for _, tr := range tracks {
			overlaps, err := s.findTrackOverlaps(ctx, tr.ID)
			if err != nil {
				return nil, err
			}
			issues = append(issues, overlaps...)
		}
	}

	logIssues, err := s.validateLog(ctx)
	if err != nil {
		return nil, err
	}
	issues = append(issues, logIssues...)

	return issues, nil
}

func (s *Store) findTrackOverlaps(ctx context.Context, trackID string) ([]Issue, error) {
	clips, err := s.ClipsByTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}

	var issues []Issue
	var prev *Clip
	for _, c := range clips {
		if !c.Enabled {
			continue
		}
		if prev != nil && c.Start < prev.End() {
			issues = append(issues, Issue{
				Entity: "track",
				ID:     trackID,
				Message: fmt.Sprintf("clips %s [%d,%d) and %s [%d,%d) overlap",
					prev.ID, prev.Start, prev.End(), c.ID, c.Start, c.End()),
			})
		}
		prev = c
	}
	return issues, nil
}

func (s *Store) validateLog(ctx context.Context) ([]Issue, error) {
	last, err := s.LastCommandSeq(ctx)
	if err != nil {
		return nil, err
	}

	var issues []Issue

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM commands`).Scan(&count); err != nil {
		return nil, fmt.Errorf("count commands: %w", err)
	}
	if count != last {
		issues = append(issues, Issue{
			Entity:  "log",
			ID:      "commands",
			Message: fmt.Sprintf("log holds %d entries but highest sequence number is %d", count, last),
		})
	}

	undoSeq, err := s.UndoSeq(ctx)
	if err != nil {
		return nil, err
	}
	if undoSeq > last {
		issues = append(issues, Issue{
			Entity:  "log",
			ID:      "undo_pointer",
			Message: fmt.Sprintf("undo pointer %d exceeds last logged command %d", undoSeq, last),
		})
	}

	return issues, nil
}
