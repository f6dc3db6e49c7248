package edit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"cutplan/internal/oplog"
	"cutplan/internal/project"
)

// Command type names. The log stores these strings, so they are part of the
// file format and never change meaning.
const (
	CmdProjectCreate    = "project.create"
	CmdProjectRemove    = "project.remove"
	CmdSequenceCreate   = "sequence.create"
	CmdSequenceRemove   = "sequence.remove"
	CmdSequenceSetState = "sequence.set_state"
	CmdTrackCreate      = "track.create"
	CmdTrackRemove      = "track.remove"
	CmdMediaRegister    = "media.register"
	CmdMediaRemove      = "media.remove"
	CmdMasterclipCreate = "masterclip.create"
	CmdMasterclipSet    = "masterclip.set_streams"
	CmdClipCreate       = "clip.create"
	CmdClipDelete       = "clip.delete"
	CmdClipMove         = "clip.move"
	CmdClipTrim         = "clip.trim"
	CmdClipSplit        = "clip.split"
	CmdClipRippleDelete = "clip.ripple_delete"
	CmdClipRippleTrim   = "clip.ripple_trim"
	CmdClipRoll         = "clip.roll"
	CmdClipSetProperty  = "clip.set_property"
	CmdClipRestoreSet   = "clip.restore_set"
	CmdTreeRestore      = "tree.restore"
)

// Handler mutates the entity state for one command type. Handlers run
// inside the dispatcher's transaction and report their delta plus the
// inverse command that undoes them exactly.
type Handler func(ctx context.Context, tx *project.Tx, raw json.RawMessage) (*handlerResult, error)

type handlerResult struct {
	delta       Delta
	inverseType string
	inverseArgs any
}

// Result describes one committed command.
type Result struct {
	CommandID string
	Seq       int64
	PreHash   string
	PostHash  string
	Delta     Delta
}

// Dispatcher serializes command execution against one project store. Every
// mutation flows through Apply; replay and undo re-enter through Reapply
// and ExecuteInverse, which verify state hashes instead of logging.
type Dispatcher struct {
	store         *project.Store
	logger        *slog.Logger
	snapshotEvery int64

	mu       sync.Mutex
	handlers map[string]Handler
}

// NewDispatcher wires the full handler set. A snapshotEvery of zero
// disables automatic checkpoints.
func NewDispatcher(store *project.Store, logger *slog.Logger, snapshotEvery int64) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:         store,
		logger:        logger,
		snapshotEvery: snapshotEvery,
		handlers: map[string]Handler{
			CmdProjectCreate:    handleProjectCreate,
			CmdProjectRemove:    handleProjectRemove,
			CmdSequenceCreate:   handleSequenceCreate,
			CmdSequenceRemove:   handleSequenceRemove,
			CmdSequenceSetState: handleSequenceSetState,
			CmdTrackCreate:      handleTrackCreate,
			CmdTrackRemove:      handleTrackRemove,
			CmdMediaRegister:    handleMediaRegister,
			CmdMediaRemove:      handleMediaRemove,
			CmdMasterclipCreate: handleMasterclipCreate,
			CmdMasterclipSet:    handleMasterclipSetStreams,
			CmdClipCreate:       handleClipCreate,
			CmdClipDelete:       handleClipDelete,
			CmdClipMove:         handleClipMove,
			CmdClipTrim:         handleClipTrim,
			CmdClipSplit:        handleClipSplit,
			CmdClipRippleDelete: handleClipRippleDelete,
			CmdClipRippleTrim:   handleClipRippleTrim,
			CmdClipRoll:         handleClipRoll,
			CmdClipSetProperty:  handleClipSetProperty,
			CmdClipRestoreSet:   handleClipRestoreSet,
			CmdTreeRestore:      handleTreeRestore,
		},
	}
}

// Apply validates, executes, and logs one command atomically. On any
// failure the transaction rolls back and the log is untouched. Appending
// while the undo pointer sits behind the log head starts a new branch; the
// abandoned commands stay in the log, reachable through their parent links.
func (d *Dispatcher) Apply(ctx context.Context, cmdType string, args any) (*Result, error) {
	handler, ok := d.handlers[cmdType]
	if !ok {
		return nil, Wrap(ErrValidation, cmdType, "unknown command type", nil)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, Wrap(ErrValidation, cmdType, "encode args", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var res *Result
	err = d.store.WithTx(ctx, func(tx *project.Tx) error {
		_, preHash, err := currentState(ctx, tx)
		if err != nil {
			return Wrap(ErrPersistence, cmdType, "hash pre-state", err)
		}
		undoSeq, err := tx.UndoSeq(ctx)
		if err != nil {
			return Wrap(ErrPersistence, cmdType, "read undo pointer", err)
		}
		lastSeq, err := tx.LastCommandSeq(ctx)
		if err != nil {
			return Wrap(ErrPersistence, cmdType, "read log head", err)
		}
		var parentID string
		if undoSeq > 0 {
			parent, err := tx.CommandBySeq(ctx, undoSeq)
			if err != nil {
				return Wrap(ErrPersistence, cmdType, "resolve parent command", err)
			}
			parentID = parent.ID
		}

		hres, err := handler(ctx, tx, raw)
		if err != nil {
			return classify(cmdType, err)
		}

		_, postHash, err := currentState(ctx, tx)
		if err != nil {
			return Wrap(ErrPersistence, cmdType, "hash post-state", err)
		}
		inverseJSON, err := json.Marshal(hres.inverseArgs)
		if err != nil {
			return Wrap(ErrPersistence, cmdType, "encode inverse args", err)
		}

		cmd := &project.Command{
			ID:          uuid.New().String(),
			ParentID:    parentID,
			Seq:         lastSeq + 1,
			Type:        cmdType,
			ArgsJSON:    string(raw),
			InverseType: hres.inverseType,
			InverseJSON: string(inverseJSON),
			PreHash:     preHash,
			PostHash:    postHash,
		}
		if err := tx.AppendCommand(ctx, cmd); err != nil {
			return Wrap(ErrPersistence, cmdType, "append to log", err)
		}
		if err := tx.SetUndoSeq(ctx, cmd.Seq); err != nil {
			return Wrap(ErrPersistence, cmdType, "advance undo pointer", err)
		}

		res = &Result{
			CommandID: cmd.ID,
			Seq:       cmd.Seq,
			PreHash:   preHash,
			PostHash:  postHash,
			Delta:     hres.delta,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Debug("command applied", "type", cmdType, "seq", res.Seq)

	if d.snapshotEvery > 0 && res.Seq%d.snapshotEvery == 0 {
		if err := d.snapshot(ctx, res.Seq); err != nil {
			// A missing checkpoint only slows future replays down.
			d.logger.Warn("snapshot failed", "seq", res.Seq, "error", err)
		}
	}
	return res, nil
}

// Reapply re-executes an already-logged command without appending. Both the
// pre- and post-state hashes must match the record; a mismatch reports
// divergence and rolls the step back. Used by replay and redo.
func (d *Dispatcher) Reapply(ctx context.Context, rec *project.Command) error {
	handler, ok := d.handlers[rec.Type]
	if !ok {
		return Wrap(ErrReplayDivergence, rec.Type,
			fmt.Sprintf("seq %d: command type is not registered", rec.Seq), nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.store.WithTx(ctx, func(tx *project.Tx) error {
		_, cur, err := currentState(ctx, tx)
		if err != nil {
			return Wrap(ErrPersistence, rec.Type, "hash pre-state", err)
		}
		if cur != rec.PreHash {
			return Wrap(ErrReplayDivergence, rec.Type,
				fmt.Sprintf("seq %d: state does not match recorded pre-state", rec.Seq), nil)
		}
		if _, err := handler(ctx, tx, json.RawMessage(rec.ArgsJSON)); err != nil {
			return classify(rec.Type, err)
		}
		_, after, err := currentState(ctx, tx)
		if err != nil {
			return Wrap(ErrPersistence, rec.Type, "hash post-state", err)
		}
		if after != rec.PostHash {
			return Wrap(ErrReplayDivergence, rec.Type,
				fmt.Sprintf("seq %d: replayed state does not match recorded post-state", rec.Seq), nil)
		}
		return tx.SetUndoSeq(ctx, rec.Seq)
	})
}

// ExecuteInverse runs a logged command's inverse to step the state back to
// the command's pre-state, then moves the undo pointer to newPointer. Both
// hashes are verified; an inexact inverse reports divergence and rolls back.
func (d *Dispatcher) ExecuteInverse(ctx context.Context, rec *project.Command, newPointer int64) error {
	handler, ok := d.handlers[rec.InverseType]
	if !ok {
		return Wrap(ErrReplayDivergence, rec.Type,
			fmt.Sprintf("seq %d: inverse type %q is not registered", rec.Seq, rec.InverseType), nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.store.WithTx(ctx, func(tx *project.Tx) error {
		_, cur, err := currentState(ctx, tx)
		if err != nil {
			return Wrap(ErrPersistence, rec.Type, "hash pre-state", err)
		}
		if cur != rec.PostHash {
			return Wrap(ErrReplayDivergence, rec.Type,
				fmt.Sprintf("seq %d: state does not match recorded post-state", rec.Seq), nil)
		}
		if _, err := handler(ctx, tx, json.RawMessage(rec.InverseJSON)); err != nil {
			return classify(rec.InverseType, err)
		}
		_, after, err := currentState(ctx, tx)
		if err != nil {
			return Wrap(ErrPersistence, rec.Type, "hash post-state", err)
		}
		if after != rec.PreHash {
			return Wrap(ErrReplayDivergence, rec.Type,
				fmt.Sprintf("seq %d: inverse did not restore the recorded pre-state", rec.Seq), nil)
		}
		return tx.SetUndoSeq(ctx, newPointer)
	})
}

func (d *Dispatcher) snapshot(ctx context.Context, seq int64) error {
	return d.store.WithTx(ctx, func(tx *project.Tx) error {
		state, _, err := currentState(ctx, tx)
		if err != nil {
			return err
		}
		if state == nil {
			return nil
		}
		blob, err := oplog.EncodeState(state)
		if err != nil {
			return err
		}
		return tx.SaveSnapshot(ctx, &project.Snapshot{
			ID:   uuid.New().String(),
			Seq:  seq,
			Blob: blob,
		})
	})
}

// stateReader is satisfied by both *project.Store and *project.Tx.
type stateReader interface {
	FirstProject(ctx context.Context) (*project.Project, error)
	DumpState(ctx context.Context, projectID string) (*project.State, error)
}

// currentState dumps and hashes the live entity tree. A file with no
// project yet hashes to the well-known empty-state value with a nil state.
func currentState(ctx context.Context, r stateReader) (*project.State, string, error) {
	proj, err := r.FirstProject(ctx)
	if errors.Is(err, project.ErrNotFound) {
		return nil, oplog.EmptyStateHash(), nil
	}
	if err != nil {
		return nil, "", err
	}
	state, err := r.DumpState(ctx, proj.ID)
	if err != nil {
		return nil, "", err
	}
	hash, err := oplog.StateHash(state)
	if err != nil {
		return nil, "", err
	}
	return state, hash, nil
}
