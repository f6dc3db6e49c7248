package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Read-only query surface consumed by the rendering/playback collaborator.
// Nothing here mutates state.

// ClipsAt returns the enabled clips active at pos on the given tracks,
// ordered by track id then clip id.
func (o ops) ClipsAt(ctx context.Context, trackIDs []string, pos int64) ([]*Clip, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + clipColumns + ` FROM clips c
        WHERE c.track_id IN (` + makePlaceholders(len(trackIDs)) + `)
          AND c.enabled = 1
          AND c.start <= ? AND c.start + c.duration > ?
        ORDER BY c.track_id, c.id`
	args := make([]any, 0, len(trackIDs)+2)
	for _, id := range trackIDs {
		args = append(args, id)
	}
	args = append(args, pos, pos)

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("clips at position: %w", err)
	}
	defer rows.Close()
	return collectClips(rows)
}

// NextBoundary returns the first clip edge (start or end) at or after pos on
// the given tracks, or nil when none exists. Used for pre-buffering
// lookahead.
func (o ops) NextBoundary(ctx context.Context, trackIDs []string, pos int64) (*int64, error) {
	return o.boundary(ctx, trackIDs, pos, true)
}

// PrevBoundary returns the last clip edge at or before pos, or nil.
func (o ops) PrevBoundary(ctx context.Context, trackIDs []string, pos int64) (*int64, error) {
	return o.boundary(ctx, trackIDs, pos, false)
}

func (o ops) boundary(ctx context.Context, trackIDs []string, pos int64, forward bool) (*int64, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(trackIDs))
	cmp, agg := ">=", "MIN"
	if !forward {
		cmp, agg = "<=", "MAX"
	}
	query := `SELECT ` + agg + `(edge) FROM (
            SELECT c.start AS edge FROM clips c
            WHERE c.track_id IN (` + placeholders + `) AND c.enabled = 1
            UNION ALL
            SELECT c.start + c.duration AS edge FROM clips c
            WHERE c.track_id IN (` + placeholders + `) AND c.enabled = 1
        ) WHERE edge ` + cmp + ` ?`

	args := make([]any, 0, len(trackIDs)*2+1)
	for i := 0; i < 2; i++ {
		for _, id := range trackIDs {
			args = append(args, id)
		}
	}
	args = append(args, pos)

	row := o.q.QueryRowContext(ctx, query, args...)
	var edge sql.NullInt64
	if err := row.Scan(&edge); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("clip boundary: %w", err)
	}
	if !edge.Valid {
		return nil, nil
	}
	v := edge.Int64
	return &v, nil
}

// TrackEnd returns the exclusive end position of the last clip on a track,
// zero for an empty track.
func (o ops) TrackEnd(ctx context.Context, trackID string) (int64, error) {
	row := o.q.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(start + duration), 0) FROM clips WHERE track_id = ?`,
		trackID,
	)
	var end int64
	if err := row.Scan(&end); err != nil {
		return 0, fmt.Errorf("track end: %w", err)
	}
	return end, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
