package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cutplan/internal/timebase"
)

const clipColumns = `c.id, c.kind, c.track_id, c.media_id, c.master_clip_id, c.name,
    c.start, c.duration, c.source_in, c.source_out, c.rate_num, c.rate_den,
    c.enabled, c.offline`

// SaveClip validates and upserts a clip. Clips on video tracks have all four
// coordinates snapped to the owning sequence's frame grid before persisting;
// use SaveClipNoSnap for audio-native coordinates.
func (o ops) SaveClip(ctx context.Context, c *Clip) error {
	return o.saveClip(ctx, c, true)
}

// SaveClipNoSnap upserts a clip without frame alignment. Reserved for
// coordinates already expressed in audio sample units.
func (o ops) SaveClipNoSnap(ctx context.Context, c *Clip) error {
	return o.saveClip(ctx, c, false)
}

func (o ops) saveClip(ctx context.Context, c *Clip, snap bool) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("clip id is required")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	track, err := o.GetTrack(ctx, c.TrackID)
	if err != nil {
		return err
	}
	if snap && track.Type == TrackVideo {
		seq, err := o.GetSequence(ctx, track.SequenceID)
		if err != nil {
			return err
		}
		c.Start = timebase.SnapToFrame(c.Start, c.Rate, seq.Rate)
		c.Duration = timebase.SnapToFrame(c.Duration, c.Rate, seq.Rate)
		c.SourceIn = timebase.SnapToFrame(c.SourceIn, c.Rate, seq.Rate)
		c.SourceOut = timebase.SnapToFrame(c.SourceOut, c.Rate, seq.Rate)
		if err := c.Validate(); err != nil {
			return fmt.Errorf("after frame alignment: %w", err)
		}
	}

	_, err = o.q.ExecContext(
		ctx,
		`INSERT INTO clips (
            id, kind, track_id, media_id, master_clip_id, name,
            start, duration, source_in, source_out, rate_num, rate_den,
            enabled, offline
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            kind = excluded.kind,
            track_id = excluded.track_id,
            media_id = excluded.media_id,
            master_clip_id = excluded.master_clip_id,
            name = excluded.name,
            start = excluded.start,
            duration = excluded.duration,
            source_in = excluded.source_in,
            source_out = excluded.source_out,
            rate_num = excluded.rate_num,
            rate_den = excluded.rate_den,
            enabled = excluded.enabled,
            offline = excluded.offline`,
		c.ID,
		string(c.Kind),
		c.TrackID,
		c.MediaID,
		nullableString(c.MasterClipID),
		c.Name,
		c.Start,
		c.Duration,
		c.SourceIn,
		c.SourceOut,
		c.Rate.Num,
		c.Rate.Den,
		boolToInt(c.Enabled),
		boolToInt(c.Offline),
	)
	if err != nil {
		return fmt.Errorf("save clip: %w", err)
	}
	return nil
}

// GetClip loads a clip by id. The join asserts the owning track and sequence
// still exist.
func (o ops) GetClip(ctx context.Context, id string) (*Clip, error) {
	row := o.q.QueryRowContext(
		ctx,
		`SELECT `+clipColumns+` FROM clips c
         JOIN tracks t ON t.id = c.track_id
         JOIN sequences s ON s.id = t.sequence_id
         WHERE c.id = ?`,
		id,
	)
	c, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get clip: %w", err)
	}
	return c, nil
}

// ClipsByTrack returns a track's clips ordered by timeline position.
func (o ops) ClipsByTrack(ctx context.Context, trackID string) ([]*Clip, error) {
	rows, err := o.q.QueryContext(
		ctx,
		`SELECT `+clipColumns+` FROM clips c WHERE c.track_id = ? ORDER BY c.start, c.id`,
		trackID,
	)
	if err != nil {
		return nil, fmt.Errorf("clips by track: %w", err)
	}
	defer rows.Close()
	return collectClips(rows)
}

// ClipsBySequence returns every clip in a sequence ordered by track then
// position.
func (o ops) ClipsBySequence(ctx context.Context, sequenceID string) ([]*Clip, error) {
	rows, err := o.q.QueryContext(
		ctx,
		`SELECT `+clipColumns+` FROM clips c
         JOIN tracks t ON t.id = c.track_id
         WHERE t.sequence_id = ?
         ORDER BY t.type, t.idx, c.start, c.id`,
		sequenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("clips by sequence: %w", err)
	}
	defer rows.Close()
	return collectClips(rows)
}

// ClipsByMasterClip returns the timeline clips that reference a master clip.
func (o ops) ClipsByMasterClip(ctx context.Context, masterClipID string) ([]*Clip, error) {
	rows, err := o.q.QueryContext(
		ctx,
		`SELECT `+clipColumns+` FROM clips c WHERE c.master_clip_id = ? ORDER BY c.id`,
		masterClipID,
	)
	if err != nil {
		return nil, fmt.Errorf("clips by master clip: %w", err)
	}
	defer rows.Close()
	return collectClips(rows)
}

// ClipsByMedia returns every clip cut from a media record.
func (o ops) ClipsByMedia(ctx context.Context, mediaID string) ([]*Clip, error) {
	rows, err := o.q.QueryContext(
		ctx,
		`SELECT `+clipColumns+` FROM clips c WHERE c.media_id = ? ORDER BY c.id`,
		mediaID,
	)
	if err != nil {
		return nil, fmt.Errorf("clips by media: %w", err)
	}
	defer rows.Close()
	return collectClips(rows)
}

// DeleteClip removes a clip by id.
func (o ops) DeleteClip(ctx context.Context, id string) error {
	res, err := o.q.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete clip: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetClipProperty upserts one property on a clip.
func (o ops) SetClipProperty(ctx context.Context, clipID, key, valueJSON string) error {
	if clipID == "" || key == "" {
		return fmt.Errorf("clip id and property key are required")
	}
	_, err := o.q.ExecContext(
		ctx,
		`INSERT INTO properties (clip_id, key, value_json) VALUES (?, ?, ?)
         ON CONFLICT(clip_id, key) DO UPDATE SET value_json = excluded.value_json`,
		clipID, key, valueJSON,
	)
	if err != nil {
		return fmt.Errorf("set clip property: %w", err)
	}
	return nil
}

// GetClipProperty returns a property's JSON value, or ErrNotFound.
func (o ops) GetClipProperty(ctx context.Context, clipID, key string) (string, error) {
	row := o.q.QueryRowContext(
		ctx,
		`SELECT value_json FROM properties WHERE clip_id = ? AND key = ?`,
		clipID, key,
	)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("property %s on clip %s: %w", key, clipID, ErrNotFound)
		}
		return "", fmt.Errorf("get clip property: %w", err)
	}
	return value, nil
}

// DeleteClipProperty removes one property from a clip.
func (o ops) DeleteClipProperty(ctx context.Context, clipID, key string) error {
	res, err := o.q.ExecContext(
		ctx,
		`DELETE FROM properties WHERE clip_id = ? AND key = ?`,
		clipID, key,
	)
	if err != nil {
		return fmt.Errorf("delete clip property: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("property %s on clip %s: %w", key, clipID, ErrNotFound)
	}
	return nil
}

// ClipProperties returns a clip's properties ordered by key.
func (o ops) ClipProperties(ctx context.Context, clipID string) ([]*Property, error) {
	rows, err := o.q.QueryContext(
		ctx,
		`SELECT clip_id, key, value_json FROM properties WHERE clip_id = ? ORDER BY key`,
		clipID,
	)
	if err != nil {
		return nil, fmt.Errorf("clip properties: %w", err)
	}
	defer rows.Close()

	var props []*Property
	for rows.Next() {
		var p Property
		if err := rows.Scan(&p.ClipID, &p.Key, &p.ValueJSON); err != nil {
			return nil, err
		}
		props = append(props, &p)
	}
	return props, rows.Err()
}

func collectClips(rows *sql.Rows) ([]*Clip, error) {
	var clips []*Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

func scanClip(scanner interface{ Scan(dest ...any) error }) (*Clip, error) {
	var (
		c         Clip
		kindStr   string
		masterRef sql.NullString
		rateNum   int64
		rateDen   int64
		enabled   int
		offline   int
	)
	if err := scanner.Scan(
		&c.ID,
		&kindStr,
		&c.TrackID,
		&c.MediaID,
		&masterRef,
		&c.Name,
		&c.Start,
		&c.Duration,
		&c.SourceIn,
		&c.SourceOut,
		&rateNum,
		&rateDen,
		&enabled,
		&offline,
	); err != nil {
		return nil, err
	}
	rate, err := timebase.NewRate(rateNum, rateDen)
	if err != nil {
		return nil, fmt.Errorf("clip %s: %w", c.ID, err)
	}
	c.Kind = ClipKind(kindStr)
	c.MasterClipID = masterRef.String
	c.Rate = rate
	c.Enabled = enabled != 0
	c.Offline = offline != 0
	return &c, nil
}
