package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const commandColumns = `id, parent_id, seq, type, args_json, inverse_type,
    inverse_args_json, pre_hash, post_hash, created_at`

// AppendCommand writes one committed command to the log. Sequence numbers
// are strictly increasing; the UNIQUE constraint rejects duplicates.
func (o ops) AppendCommand(ctx context.Context, cmd *Command) error {
	if cmd == nil || cmd.ID == "" {
		return fmt.Errorf("command id is required")
	}
	if cmd.Seq <= 0 {
		return fmt.Errorf("command %s: sequence number must be positive, got %d", cmd.ID, cmd.Seq)
	}
	if cmd.Type == "" {
		return fmt.Errorf("command %s: type is required", cmd.ID)
	}
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}
	_, err := o.q.ExecContext(
		ctx,
		`INSERT INTO commands (
            id, parent_id, seq, type, args_json, inverse_type,
            inverse_args_json, pre_hash, post_hash, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cmd.ID,
		nullableString(cmd.ParentID),
		cmd.Seq,
		cmd.Type,
		cmd.ArgsJSON,
		cmd.InverseType,
		cmd.InverseJSON,
		cmd.PreHash,
		cmd.PostHash,
		cmd.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append command: %w", err)
	}
	return nil
}

// CommandBySeq loads one log entry by sequence number.
func (o ops) CommandBySeq(ctx context.Context, seq int64) (*Command, error) {
	row := o.q.QueryRowContext(ctx, `SELECT `+commandColumns+` FROM commands WHERE seq = ?`, seq)
	cmd, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("command seq %d: %w", seq, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("command by seq: %w", err)
	}
	return cmd, nil
}

// CommandByID loads one log entry by command id.
func (o ops) CommandByID(ctx context.Context, id string) (*Command, error) {
	row := o.q.QueryRowContext(ctx, `SELECT `+commandColumns+` FROM commands WHERE id = ?`, id)
	cmd, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("command %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("command by id: %w", err)
	}
	return cmd, nil
}

// LatestChildCommand returns the newest command whose parent is the given
// command id, with an empty id matching the log roots. The newest child is
// the branch redo follows.
func (o ops) LatestChildCommand(ctx context.Context, parentID string) (*Command, error) {
	query := `SELECT ` + commandColumns + ` FROM commands WHERE parent_id = ? ORDER BY seq DESC LIMIT 1`
	args := []any{parentID}
	if parentID == "" {
		query = `SELECT ` + commandColumns + ` FROM commands WHERE parent_id IS NULL ORDER BY seq DESC LIMIT 1`
		args = nil
	}
	row := o.q.QueryRowContext(ctx, query, args...)
	cmd, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no command follows %q: %w", parentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest child command: %w", err)
	}
	return cmd, nil
}

// CommandsInRange returns logged commands with from <= seq <= to, ordered by
// sequence number.
func (o ops) CommandsInRange(ctx context.Context, from, to int64) ([]*Command, error) {
	rows, err := o.q.QueryContext(
		ctx,
		`SELECT `+commandColumns+` FROM commands WHERE seq >= ? AND seq <= ? ORDER BY seq`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("commands in range: %w", err)
	}
	defer rows.Close()

	var cmds []*Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

// LastCommandSeq returns the highest committed sequence number, zero for an
// empty log.
func (o ops) LastCommandSeq(ctx context.Context) (int64, error) {
	row := o.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM commands`)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("last command seq: %w", err)
	}
	return seq, nil
}

// UndoSeq returns the active undo pointer: the sequence number of the most
// recent command currently applied to the entity state.
func (o ops) UndoSeq(ctx context.Context) (int64, error) {
	row := o.q.QueryRowContext(ctx, `SELECT undo_seq FROM log_state WHERE id = 1`)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read undo pointer: %w", err)
	}
	return seq, nil
}

// SetUndoSeq moves the active undo pointer without touching the log.
func (o ops) SetUndoSeq(ctx context.Context, seq int64) error {
	if seq < 0 {
		return fmt.Errorf("undo pointer must be non-negative, got %d", seq)
	}
	if _, err := o.q.ExecContext(ctx, `UPDATE log_state SET undo_seq = ? WHERE id = 1`, seq); err != nil {
		return fmt.Errorf("set undo pointer: %w", err)
	}
	return nil
}

// SaveSnapshot stores one replay checkpoint.
func (o ops) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}
	if len(snap.Blob) == 0 {
		return fmt.Errorf("snapshot %s: state blob is required", snap.ID)
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	_, err := o.q.ExecContext(
		ctx,
		`INSERT INTO snapshots (id, seq, state_blob, created_at) VALUES (?, ?, ?, ?)`,
		snap.ID,
		snap.Seq,
		snap.Blob,
		snap.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// SnapshotAtOrBefore returns the newest snapshot covering the log up to seq,
// or ErrNotFound when replay must start from the empty state.
func (o ops) SnapshotAtOrBefore(ctx context.Context, seq int64) (*Snapshot, error) {
	row := o.q.QueryRowContext(
		ctx,
		`SELECT id, seq, state_blob, created_at FROM snapshots
         WHERE seq <= ? ORDER BY seq DESC LIMIT 1`,
		seq,
	)
	var (
		snap       Snapshot
		createdRaw string
	)
	if err := row.Scan(&snap.ID, &snap.Seq, &snap.Blob, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot at or before seq %d: %w", seq, ErrNotFound)
		}
		return nil, fmt.Errorf("snapshot at or before: %w", err)
	}
	snap.CreatedAt = parseStoredTime(createdRaw)
	return &snap, nil
}

func scanCommand(scanner interface{ Scan(dest ...any) error }) (*Command, error) {
	var (
		cmd        Command
		parentID   sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(
		&cmd.ID,
		&parentID,
		&cmd.Seq,
		&cmd.Type,
		&cmd.ArgsJSON,
		&cmd.InverseType,
		&cmd.InverseJSON,
		&cmd.PreHash,
		&cmd.PostHash,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	cmd.ParentID = parentID.String
	cmd.CreatedAt = parseStoredTime(createdRaw)
	return &cmd, nil
}
