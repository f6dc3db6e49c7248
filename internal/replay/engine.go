// Package replay rebuilds entity state from the command log and drives
// undo and redo through the log's parent links.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cutplan/internal/edit"
	"cutplan/internal/oplog"
	"cutplan/internal/project"
)

// Result reports one replay run. BaseSeq is the checkpoint the run started
// from, zero meaning the empty state. DivergedAt names the first command
// whose re-execution failed to reproduce its recorded post-state; zero
// means the run was clean.
type Result struct {
	Target     int64
	BaseSeq    int64
	Replayed   int
	DivergedAt int64
}

// Engine replays logged commands through the dispatcher. Replay is
// destructive: it overwrites the entity state of the store it runs on, so
// diagnostic replays should work on a saved copy of the project file.
type Engine struct {
	store  *project.Store
	disp   *edit.Dispatcher
	logger *slog.Logger
}

// NewEngine builds a replay engine over a store and its dispatcher.
func NewEngine(store *project.Store, disp *edit.Dispatcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, disp: disp, logger: logger}
}

// Replay rebuilds the state at the given log position. It restores the
// newest snapshot on the target's lineage, re-executes the remaining
// lineage commands in order, and verifies every recorded hash along the
// way. A target of zero rebuilds the empty state. On divergence the run
// halts with the state as the last consistent step left it.
func (e *Engine) Replay(ctx context.Context, target int64) (*Result, error) {
	res := &Result{Target: target}

	if target == 0 {
		err := e.store.WithTx(ctx, func(tx *project.Tx) error {
			if err := tx.ClearEntities(ctx); err != nil {
				return err
			}
			return tx.SetUndoSeq(ctx, 0)
		})
		if err != nil {
			return res, edit.Wrap(edit.ErrPersistence, "replay", "reset to empty state", err)
		}
		return res, nil
	}

	chain, err := e.lineage(ctx, target)
	if err != nil {
		return res, err
	}

	snap, snapCmd, err := e.snapshotOnLineage(ctx, chain)
	if err != nil {
		return res, err
	}

	if snap != nil {
		res.BaseSeq = snap.Seq
		if err := e.restoreSnapshot(ctx, snap, snapCmd); err != nil {
			return res, err
		}
	} else {
		err := e.store.WithTx(ctx, func(tx *project.Tx) error {
			if err := tx.ClearEntities(ctx); err != nil {
				return err
			}
			return tx.SetUndoSeq(ctx, 0)
		})
		if err != nil {
			return res, edit.Wrap(edit.ErrPersistence, "replay", "reset to empty state", err)
		}
	}

	for _, rec := range chain {
		if rec.Seq <= res.BaseSeq {
			continue
		}
		if err := e.disp.Reapply(ctx, rec); err != nil {
			if errors.Is(err, edit.ErrReplayDivergence) {
				res.DivergedAt = rec.Seq
				e.logger.Error("replay diverged", "seq", rec.Seq, "type", rec.Type)
			}
			return res, err
		}
		res.Replayed++
	}

	e.logger.Info("replay complete", "target", target, "base", res.BaseSeq, "replayed", res.Replayed)
	return res, nil
}

// Undo steps the state back across the command at the undo pointer by
// executing its logged inverse, then moves the pointer to its parent. The
// log itself is untouched; the undone command stays reachable for redo.
func (e *Engine) Undo(ctx context.Context) (*project.Command, error) {
	pointer, err := e.store.UndoSeq(ctx)
	if err != nil {
		return nil, edit.Wrap(edit.ErrPersistence, "undo", "read undo pointer", err)
	}
	if pointer == 0 {
		return nil, edit.Wrap(edit.ErrValidation, "undo", "nothing to undo", nil)
	}
	rec, err := e.store.CommandBySeq(ctx, pointer)
	if err != nil {
		return nil, edit.Wrap(edit.ErrPersistence, "undo", "load command", err)
	}
	var parentSeq int64
	if rec.ParentID != "" {
		parent, err := e.store.CommandByID(ctx, rec.ParentID)
		if err != nil {
			return nil, edit.Wrap(edit.ErrPersistence, "undo", "resolve parent command", err)
		}
		parentSeq = parent.Seq
	}
	if err := e.disp.ExecuteInverse(ctx, rec, parentSeq); err != nil {
		return nil, err
	}
	e.logger.Info("undo", "seq", rec.Seq, "type", rec.Type)
	return rec, nil
}

// Redo re-applies the newest command branching off the undo pointer. After
// an undo that is the command just undone; after appending on an old
// pointer it is the new branch, leaving earlier branches reachable only by
// explicit replay.
func (e *Engine) Redo(ctx context.Context) (*project.Command, error) {
	pointer, err := e.store.UndoSeq(ctx)
	if err != nil {
		return nil, edit.Wrap(edit.ErrPersistence, "redo", "read undo pointer", err)
	}
	var parentID string
	if pointer > 0 {
		cur, err := e.store.CommandBySeq(ctx, pointer)
		if err != nil {
			return nil, edit.Wrap(edit.ErrPersistence, "redo", "load command", err)
		}
		parentID = cur.ID
	}
	next, err := e.store.LatestChildCommand(ctx, parentID)
	if errors.Is(err, project.ErrNotFound) {
		return nil, edit.Wrap(edit.ErrValidation, "redo", "nothing to redo", nil)
	}
	if err != nil {
		return nil, edit.Wrap(edit.ErrPersistence, "redo", "resolve next command", err)
	}
	if err := e.disp.Reapply(ctx, next); err != nil {
		return nil, err
	}
	e.logger.Info("redo", "seq", next.Seq, "type", next.Type)
	return next, nil
}

// lineage walks the parent links from the target back to a log root and
// returns the chain oldest first.
func (e *Engine) lineage(ctx context.Context, target int64) ([]*project.Command, error) {
	rec, err := e.store.CommandBySeq(ctx, target)
	if err != nil {
		return nil, edit.Wrap(edit.ErrNotFound, "replay", fmt.Sprintf("target seq %d", target), err)
	}
	var chain []*project.Command
	for {
		chain = append(chain, rec)
		if rec.ParentID == "" {
			break
		}
		rec, err = e.store.CommandByID(ctx, rec.ParentID)
		if err != nil {
			return nil, edit.Wrap(edit.ErrPersistence, "replay", "walk parent links", err)
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// snapshotOnLineage finds the newest snapshot whose sequence lies on the
// chain. Snapshots taken on abandoned branches are skipped.
func (e *Engine) snapshotOnLineage(ctx context.Context, chain []*project.Command) (*project.Snapshot, *project.Command, error) {
	onChain := make(map[int64]*project.Command, len(chain))
	for _, rec := range chain {
		onChain[rec.Seq] = rec
	}
	limit := chain[len(chain)-1].Seq
	for limit > 0 {
		snap, err := e.store.SnapshotAtOrBefore(ctx, limit)
		if errors.Is(err, project.ErrNotFound) {
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, edit.Wrap(edit.ErrPersistence, "replay", "look up snapshot", err)
		}
		if rec, ok := onChain[snap.Seq]; ok {
			return snap, rec, nil
		}
		limit = snap.Seq - 1
	}
	return nil, nil, nil
}

// restoreSnapshot installs a checkpoint and verifies it against the hash
// recorded for the command it covers.
func (e *Engine) restoreSnapshot(ctx context.Context, snap *project.Snapshot, rec *project.Command) error {
	state, err := oplog.DecodeState(snap.Blob)
	if err != nil {
		return edit.Wrap(edit.ErrPersistence, "replay", fmt.Sprintf("decode snapshot %s", snap.ID), err)
	}
	return e.store.WithTx(ctx, func(tx *project.Tx) error {
		if err := tx.RestoreState(ctx, state); err != nil {
			return edit.Wrap(edit.ErrPersistence, "replay", "restore snapshot", err)
		}
		restored, err := tx.DumpState(ctx, state.Project.ID)
		if err != nil {
			return edit.Wrap(edit.ErrPersistence, "replay", "dump restored state", err)
		}
		hash, err := oplog.StateHash(restored)
		if err != nil {
			return edit.Wrap(edit.ErrPersistence, "replay", "hash restored state", err)
		}
		if hash != rec.PostHash {
			return edit.Wrap(edit.ErrReplayDivergence, "replay",
				fmt.Sprintf("snapshot at seq %d does not match the recorded state", snap.Seq), nil)
		}
		return tx.SetUndoSeq(ctx, snap.Seq)
	})
}
