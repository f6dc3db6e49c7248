package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cutplan/internal/timebase"
)

// ErrNotFound marks lookups whose referenced entity id does not exist.
var ErrNotFound = errors.New("not found")

// SaveProject inserts or updates a project keyed on its id.
func (o ops) SaveProject(ctx context.Context, p *Project) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("project id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("project %s: name is required", p.ID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = time.Now().UTC()
	if p.SettingsJSON == "" {
		p.SettingsJSON = "{}"
	}
	_, err := o.q.ExecContext(
		ctx,
		`INSERT INTO projects (id, name, created_at, updated_at, settings_json)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             name = excluded.name,
             updated_at = excluded.updated_at,
             settings_json = excluded.settings_json`,
		p.ID,
		p.Name,
		p.CreatedAt.Format(time.RFC3339Nano),
		p.UpdatedAt.Format(time.RFC3339Nano),
		p.SettingsJSON,
	)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// GetProject loads a project by id.
func (o ops) GetProject(ctx context.Context, id string) (*Project, error) {
	row := o.q.QueryRowContext(
		ctx,
		`SELECT id, name, created_at, updated_at, settings_json FROM projects WHERE id = ?`,
		id,
	)
	var (
		p          Project
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&p.ID, &p.Name, &createdRaw, &updatedRaw, &p.SettingsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	p.CreatedAt = parseStoredTime(createdRaw)
	p.UpdatedAt = parseStoredTime(updatedRaw)
	return &p, nil
}

// FirstProject returns the single project a file holds.
func (o ops) FirstProject(ctx context.Context) (*Project, error) {
	row := o.q.QueryRowContext(ctx, `SELECT id FROM projects ORDER BY created_at LIMIT 1`)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project file holds no project: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("first project: %w", err)
	}
	return o.GetProject(ctx, id)
}

// DeleteProject removes a project and, through cascade, its sequences,
// tracks, clips, and properties. Media records are left in place.
func (o ops) DeleteProject(ctx context.Context, id string) error {
	res, err := o.q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveSequence inserts or updates a sequence keyed on its id.
func (o ops) SaveSequence(ctx context.Context, seq *Sequence) error {
	if seq == nil || seq.ID == "" {
		return fmt.Errorf("sequence id is required")
	}
	if seq.ProjectID == "" {
		return fmt.Errorf("sequence %s: project id is required", seq.ID)
	}
	if seq.Kind != SequenceTimeline && seq.Kind != SequenceMasterclip {
		return fmt.Errorf("sequence %s: unknown kind %q", seq.ID, seq.Kind)
	}
	if !seq.Rate.Valid() {
		return fmt.Errorf("sequence %s: %w: %s", seq.ID, timebase.ErrInvalidRate, seq.Rate)
	}
	if seq.CreatedAt.IsZero() {
		seq.CreatedAt = time.Now().UTC()
	}
	seq.UpdatedAt = time.Now().UTC()
	if seq.SelectionJSON == "" {
		seq.SelectionJSON = "[]"
	}
	_, err := o.q.ExecContext(
		ctx,
		`INSERT INTO sequences (
            id, project_id, name, kind, rate_num, rate_den, width, height,
            playhead, view_start, view_end, mark_in, mark_out, selection_json,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            kind = excluded.kind,
            rate_num = excluded.rate_num,
            rate_den = excluded.rate_den,
            width = excluded.width,
            height = excluded.height,
            playhead = excluded.playhead,
            view_start = excluded.view_start,
            view_end = excluded.view_end,
            mark_in = excluded.mark_in,
            mark_out = excluded.mark_out,
            selection_json = excluded.selection_json,
            updated_at = excluded.updated_at`,
		seq.ID,
		seq.ProjectID,
		seq.Name,
		string(seq.Kind),
		seq.Rate.Num,
		seq.Rate.Den,
		seq.Width,
		seq.Height,
		seq.Playhead,
		seq.ViewStart,
		seq.ViewEnd,
		nullableInt64(seq.MarkIn),
		nullableInt64(seq.MarkOut),
		seq.SelectionJSON,
		seq.CreatedAt.Format(time.RFC3339Nano),
		seq.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save sequence: %w", err)
	}
	return nil
}

const sequenceColumns = `id, project_id, name, kind, rate_num, rate_den, width, height,
    playhead, view_start, view_end, mark_in, mark_out, selection_json, created_at, updated_at`

// GetSequence loads a sequence by id and validates its rate.
func (o ops) GetSequence(ctx context.Context, id string) (*Sequence, error) {
	row := o.q.QueryRowContext(ctx, `SELECT `+sequenceColumns+` FROM sequences WHERE id = ?`, id)
	seq, err := scanSequence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sequence %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}
	return seq, nil
}

// SequencesByProject returns a project's sequences ordered by id for
// deterministic iteration.
func (o ops) SequencesByProject(ctx context.Context, projectID string) ([]*Sequence, error) {
	rows, err := o.q.QueryContext(
		ctx,
		`SELECT `+sequenceColumns+` FROM sequences WHERE project_id = ? ORDER BY id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("sequences by project: %w", err)
	}
	defer rows.Close()

	var sequences []*Sequence
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return nil, err
		}
		sequences = append(sequences, seq)
	}
	return sequences, rows.Err()
}

// DeleteSequence removes a sequence and, through cascade, its tracks and clips.
func (o ops) DeleteSequence(ctx context.Context, id string) error {
	res, err := o.q.ExecContext(ctx, `DELETE FROM sequences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sequence: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("sequence %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanSequence(scanner interface{ Scan(dest ...any) error }) (*Sequence, error) {
	var (
		seq        Sequence
		kindStr    string
		rateNum    int64
		rateDen    int64
		markIn     sql.NullInt64
		markOut    sql.NullInt64
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&seq.ID,
		&seq.ProjectID,
		&seq.Name,
		&kindStr,
		&rateNum,
		&rateDen,
		&seq.Width,
		&seq.Height,
		&seq.Playhead,
		&seq.ViewStart,
		&seq.ViewEnd,
		&markIn,
		&markOut,
		&seq.SelectionJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	rate, err := timebase.NewRate(rateNum, rateDen)
	if err != nil {
		return nil, fmt.Errorf("sequence %s: %w", seq.ID, err)
	}
	seq.Kind = SequenceKind(kindStr)
	seq.Rate = rate
	if markIn.Valid {
		v := markIn.Int64
		seq.MarkIn = &v
	}
	if markOut.Valid {
		v := markOut.Int64
		seq.MarkOut = &v
	}
	seq.CreatedAt = parseStoredTime(createdRaw)
	seq.UpdatedAt = parseStoredTime(updatedRaw)
	return &seq, nil
}

// SaveTrack inserts or updates a track keyed on its id.
func (o ops) SaveTrack(ctx context.Context, tr *Track) error {
	if tr == nil || tr.ID == "" {
		return fmt.Errorf("track id is required")
	}
	if tr.SequenceID == "" {
		return fmt.Errorf("track %s: sequence id is required", tr.ID)
	}
	if tr.Type != TrackVideo && tr.Type != TrackAudio {
		return fmt.Errorf("track %s: unknown type %q", tr.ID, tr.Type)
	}
	if tr.Index < 0 {
		return fmt.Errorf("track %s: index must be non-negative, got %d", tr.ID, tr.Index)
	}
	_, err := o.q.ExecContext(
		ctx,
		`INSERT INTO tracks (id, sequence_id, type, idx, enabled, locked)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             sequence_id = excluded.sequence_id,
             type = excluded.type,
             idx = excluded.idx,
             enabled = excluded.enabled,
             locked = excluded.locked`,
		tr.ID,
		tr.SequenceID,
		string(tr.Type),
		tr.Index,
		boolToInt(tr.Enabled),
		boolToInt(tr.Locked),
	)
	if err != nil {
		return fmt.Errorf("save track: %w", err)
	}
	return nil
}

// GetTrack loads a track by id.
func (o ops) GetTrack(ctx context.Context, id string) (*Track, error) {
	row := o.q.QueryRowContext(
		ctx,
		`SELECT id, sequence_id, type, idx, enabled, locked FROM tracks WHERE id = ?`,
		id,
	)
	tr, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return tr, nil
}

// TracksBySequence returns a sequence's tracks ordered by type then index.
func (o ops) TracksBySequence(ctx context.Context, sequenceID string) ([]*Track, error) {
	rows, err := o.q.QueryContext(
		ctx,
		`SELECT id, sequence_id, type, idx, enabled, locked
         FROM tracks WHERE sequence_id = ? ORDER BY type, idx`,
		sequenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("tracks by sequence: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		tr, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, tr)
	}
	return tracks, rows.Err()
}

// DeleteTrack removes a track and, through cascade, its clips.
func (o ops) DeleteTrack(ctx context.Context, id string) error {
	res, err := o.q.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete track: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*Track, error) {
	var (
		tr      Track
		typeStr string
		enabled int
		locked  int
	)
	if err := scanner.Scan(&tr.ID, &tr.SequenceID, &typeStr, &tr.Index, &enabled, &locked); err != nil {
		return nil, err
	}
	tr.Type = TrackType(typeStr)
	tr.Enabled = enabled != 0
	tr.Locked = locked != 0
	return &tr, nil
}

// SaveMedia inserts or updates a media record keyed on its id.
func (o ops) SaveMedia(ctx context.Context, m *Media) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("media id is required")
	}
	if m.FilePath == "" {
		return fmt.Errorf("media %s: file path is required", m.ID)
	}
	if !m.Rate.Valid() {
		return fmt.Errorf("media %s: %w: %s", m.ID, timebase.ErrInvalidRate, m.Rate)
	}
	if m.Duration < 0 {
		return fmt.Errorf("media %s: duration must be non-negative, got %d", m.ID, m.Duration)
	}
	_, err := o.q.ExecContext(
		ctx,
		`INSERT INTO media (
            id, file_name, file_path, duration, rate_num, rate_den,
            width, height, audio_channels, sample_rate
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            file_name = excluded.file_name,
            file_path = excluded.file_path,
            duration = excluded.duration,
            rate_num = excluded.rate_num,
            rate_den = excluded.rate_den,
            width = excluded.width,
            height = excluded.height,
            audio_channels = excluded.audio_channels,
            sample_rate = excluded.sample_rate`,
		m.ID,
		m.FileName,
		m.FilePath,
		m.Duration,
		m.Rate.Num,
		m.Rate.Den,
		m.Width,
		m.Height,
		m.AudioChannels,
		m.SampleRate,
	)
	if err != nil {
		return fmt.Errorf("save media: %w", err)
	}
	return nil
}

// GetMedia loads a media record by id and validates its rate.
func (o ops) GetMedia(ctx context.Context, id string) (*Media, error) {
	row := o.q.QueryRowContext(
		ctx,
		`SELECT id, file_name, file_path, duration, rate_num, rate_den,
            width, height, audio_channels, sample_rate
         FROM media WHERE id = ?`,
		id,
	)
	m, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}
	return m, nil
}

// ListMedia returns every media record ordered by id.
func (o ops) ListMedia(ctx context.Context) ([]*Media, error) {
	rows, err := o.q.QueryContext(
		ctx,
		`SELECT id, file_name, file_path, duration, rate_num, rate_den,
            width, height, audio_channels, sample_rate
         FROM media ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var items []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// DeleteMedia removes a media record. Fails while clips still reference it.
func (o ops) DeleteMedia(ctx context.Context, id string) error {
	res, err := o.q.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("media %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanMedia(scanner interface{ Scan(dest ...any) error }) (*Media, error) {
	var (
		m       Media
		rateNum int64
		rateDen int64
	)
	if err := scanner.Scan(
		&m.ID,
		&m.FileName,
		&m.FilePath,
		&m.Duration,
		&rateNum,
		&rateDen,
		&m.Width,
		&m.Height,
		&m.AudioChannels,
		&m.SampleRate,
	); err != nil {
		return nil, err
	}
	rate, err := timebase.NewRate(rateNum, rateDen)
	if err != nil {
		return nil, fmt.Errorf("media %s: %w", m.ID, err)
	}
	m.Rate = rate
	return &m, nil
}

func parseStoredTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
