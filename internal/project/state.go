package project

import (
	"context"
	"fmt"
)

// State is a deterministic full dump of a project's entity tree. Slices are
// ordered by id so two equal states always serialize identically. The
// command log and snapshots are not part of the state; they describe its
// history.
type State struct {
	Project    *Project    `json:"project"`
	Sequences  []*Sequence `json:"sequences"`
	Tracks     []*Track    `json:"tracks"`
	Clips      []*Clip     `json:"clips"`
	Media      []*Media    `json:"media"`
	Properties []*Property `json:"properties"`
}

// DumpState reads a project's complete entity tree in id order.
func (o ops) DumpState(ctx context.Context, projectID string) (*State, error) {
	proj, err := o.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	state := &State{Project: proj}

	state.Sequences, err = o.SequencesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	rows, err := o.q.QueryContext(
		ctx,
		`SELECT t.id, t.sequence_id, t.type, t.idx, t.enabled, t.locked
         FROM tracks t
         JOIN sequences s ON s.id = t.sequence_id
         WHERE s.project_id = ? ORDER BY t.id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("dump tracks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		tr, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		state.Tracks = append(state.Tracks, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	clipRows, err := o.q.QueryContext(
		ctx,
		`SELECT `+clipColumns+` FROM clips c
         JOIN tracks t ON t.id = c.track_id
         JOIN sequences s ON s.id = t.sequence_id
         WHERE s.project_id = ? ORDER BY c.id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("dump clips: %w", err)
	}
	defer clipRows.Close()
	state.Clips, err = collectClips(clipRows)
	if err != nil {
		return nil, err
	}

	state.Media, err = o.ListMedia(ctx)
	if err != nil {
		return nil, err
	}

	propRows, err := o.q.QueryContext(
		ctx,
		`SELECT p.clip_id, p.key, p.value_json FROM properties p
         JOIN clips c ON c.id = p.clip_id
         JOIN tracks t ON t.id = c.track_id
         JOIN sequences s ON s.id = t.sequence_id
         WHERE s.project_id = ? ORDER BY p.clip_id, p.key`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("dump properties: %w", err)
	}
	defer propRows.Close()
	for propRows.Next() {
		var p Property
		if err := propRows.Scan(&p.ClipID, &p.Key, &p.ValueJSON); err != nil {
			return nil, err
		}
		state.Properties = append(state.Properties, &p)
	}
	if err := propRows.Err(); err != nil {
		return nil, err
	}

	return state, nil
}

// ClearEntities wipes the entity tree back to the empty state. The command
// log, snapshots, and undo pointer are left untouched.
func (o ops) ClearEntities(ctx context.Context) error {
	if _, err := o.q.ExecContext(ctx, `DELETE FROM projects`); err != nil {
		return fmt.Errorf("clear projects: %w", err)
	}
	if _, err := o.q.ExecContext(ctx, `DELETE FROM media`); err != nil {
		return fmt.Errorf("clear media: %w", err)
	}
	return nil
}

// RestoreState replaces the entire entity tree with the given state. The
// command log, snapshots, and undo pointer are left untouched. Must run
// inside the caller's transaction when atomicity matters.
func (o ops) RestoreState(ctx context.Context, state *State) error {
	if state == nil || state.Project == nil {
		return fmt.Errorf("state with a project is required")
	}

	// Cascades clear sequences, tracks, clips, and properties.
	if _, err := o.q.ExecContext(ctx, `DELETE FROM projects`); err != nil {
		return fmt.Errorf("clear projects: %w", err)
	}
	if _, err := o.q.ExecContext(ctx, `DELETE FROM media`); err != nil {
		return fmt.Errorf("clear media: %w", err)
	}

	if err := o.SaveProject(ctx, state.Project); err != nil {
		return err
	}
	for _, seq := range state.Sequences {
		if err := o.SaveSequence(ctx, seq); err != nil {
			return err
		}
	}
	for _, tr := range state.Tracks {
		if err := o.SaveTrack(ctx, tr); err != nil {
			return err
		}
	}
	for _, m := range state.Media {
		if err := o.SaveMedia(ctx, m); err != nil {
			return err
		}
	}
	for _, c := range state.Clips {
		// Coordinates were aligned when first saved; restoring must not
		// re-snap them.
		if err := o.SaveClipNoSnap(ctx, c); err != nil {
			return err
		}
	}
	for _, p := range state.Properties {
		if err := o.SetClipProperty(ctx, p.ClipID, p.Key, p.ValueJSON); err != nil {
			return err
		}
	}
	return nil
}
