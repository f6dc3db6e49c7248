package replay_test

import (
	"context"
	"errors"
	"testing"

	"cutplan/internal/edit"
	"cutplan/internal/logging"
	"cutplan/internal/oplog"
	"cutplan/internal/project"
	"cutplan/internal/replay"
	"cutplan/internal/testsupport"
	"cutplan/internal/timebase"
)

type env struct {
	store  *project.Store
	disp   *edit.Dispatcher
	engine *replay.Engine
	rate   timebase.Rate
}

func newEnv(t *testing.T, snapshotEvery int64) *env {
	t.Helper()
	store := testsupport.MustOpenStore(t)
	disp := edit.NewDispatcher(store, logging.Nop(), snapshotEvery)
	return &env{
		store:  store,
		disp:   disp,
		engine: replay.NewEngine(store, disp, logging.Nop()),
	}
}

func (e *env) apply(t *testing.T, cmd string, args any) *edit.Result {
	t.Helper()
	res, err := e.disp.Apply(context.Background(), cmd, args)
	if err != nil {
		t.Fatalf("Apply(%s): %v", cmd, err)
	}
	return res
}

func (e *env) seed(t *testing.T) {
	t.Helper()
	rate, err := timebase.NewRate(25, 1)
	if err != nil {
		t.Fatalf("NewRate: %v", err)
	}
	e.rate = rate

	e.apply(t, edit.CmdProjectCreate, &edit.ProjectCreateArgs{ID: "proj-1", Name: "Test"})
	e.apply(t, edit.CmdSequenceCreate, &edit.SequenceCreateArgs{
		ID: "seq-1", ProjectID: "proj-1", Name: "Timeline",
		Kind: project.SequenceTimeline, Rate: rate, Width: 1920, Height: 1080,
	})
	e.apply(t, edit.CmdTrackCreate, &edit.TrackCreateArgs{
		ID: "track-v1", SequenceID: "seq-1", Type: project.TrackVideo, Index: 0,
	})
	e.apply(t, edit.CmdMediaRegister, &edit.MediaRegisterArgs{Media: &project.Media{
		ID: "media-1", FileName: "clip.mov", FilePath: "/media/clip.mov",
		Duration: 10000, Rate: rate, Width: 1920, Height: 1080,
	}})
}

func (e *env) addClip(t *testing.T, id string, start, duration int64) {
	t.Helper()
	e.apply(t, edit.CmdClipCreate, &edit.ClipCreateArgs{Clip: &project.Clip{
		ID: id, Kind: project.ClipTimeline, TrackID: "track-v1", MediaID: "media-1",
		Name: id, Start: start, Duration: duration,
		SourceIn: 0, SourceOut: duration, Rate: e.rate, Enabled: true,
	}})
}

func (e *env) stateHash(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	proj, err := e.store.FirstProject(ctx)
	if errors.Is(err, project.ErrNotFound) {
		return oplog.EmptyStateHash()
	}
	if err != nil {
		t.Fatalf("FirstProject: %v", err)
	}
	state, err := e.store.DumpState(ctx, proj.ID)
	if err != nil {
		t.Fatalf("DumpState: %v", err)
	}
	hash, err := oplog.StateHash(state)
	if err != nil {
		t.Fatalf("StateHash: %v", err)
	}
	return hash
}

func TestUndoRedoRestoreExactState(t *testing.T) {
	e := newEnv(t, 0)
	e.seed(t)
	e.addClip(t, "clip-a", 0, 100)

	beforeSplit := e.stateHash(t)
	e.apply(t, edit.CmdClipSplit, &edit.ClipSplitArgs{ID: "clip-a", Position: 40})
	afterSplit := e.stateHash(t)

	ctx := context.Background()
	rec, err := e.engine.Undo(ctx)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if rec.Type != edit.CmdClipSplit {
		t.Fatalf("undid %s, want %s", rec.Type, edit.CmdClipSplit)
	}
	if got := e.stateHash(t); got != beforeSplit {
		t.Fatal("undo did not restore the pre-split state exactly")
	}

	if _, err := e.engine.Redo(ctx); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if got := e.stateHash(t); got != afterSplit {
		t.Fatal("redo did not restore the post-split state exactly")
	}
}

func TestUndoOcclusionSideEffects(t *testing.T) {
	e := newEnv(t, 0)
	e.seed(t)
	e.addClip(t, "clip-a", 0, 100)

	before := e.stateHash(t)
	// This placement trims clip-a; undo must restore the trim too.
	e.addClip(t, "clip-b", 50, 100)

	ctx := context.Background()
	if _, err := e.engine.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got := e.stateHash(t); got != before {
		t.Fatal("undo did not reverse the occlusion side effects")
	}

	a, err := e.store.GetClip(ctx, "clip-a")
	if err != nil {
		t.Fatalf("GetClip: %v", err)
	}
	if a.Duration != 100 || a.SourceOut != 100 {
		t.Fatalf("clip-a not restored: duration %d source out %d", a.Duration, a.SourceOut)
	}
}

func TestUndoToEmptyAndRedoForward(t *testing.T) {
	e := newEnv(t, 0)
	e.seed(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := e.engine.Undo(ctx); err != nil {
			t.Fatalf("Undo %d: %v", i, err)
		}
	}
	if got := e.stateHash(t); got != oplog.EmptyStateHash() {
		t.Fatal("undoing every command should leave the empty state")
	}
	if _, err := e.engine.Undo(ctx); edit.Kind(err) != "validation" {
		t.Fatalf("expected nothing-to-undo validation error, got %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := e.engine.Redo(ctx); err != nil {
			t.Fatalf("Redo %d: %v", i, err)
		}
	}
	pointer, err := e.store.UndoSeq(ctx)
	if err != nil || pointer != 4 {
		t.Fatalf("pointer should return to 4, got %d (%v)", pointer, err)
	}
	if _, err := e.engine.Redo(ctx); edit.Kind(err) != "validation" {
		t.Fatalf("expected nothing-to-redo validation error, got %v", err)
	}
}

func TestReplayRebuildsIdenticalState(t *testing.T) {
	e := newEnv(t, 3)
	e.seed(t)
	e.addClip(t, "clip-a", 0, 100)
	e.addClip(t, "clip-b", 100, 50)
	e.apply(t, edit.CmdClipRippleDelete, &edit.ClipRippleDeleteArgs{ID: "clip-a"})

	want := e.stateHash(t)
	ctx := context.Background()
	last, err := e.store.LastCommandSeq(ctx)
	if err != nil {
		t.Fatalf("LastCommandSeq: %v", err)
	}

	res, err := e.engine.Replay(ctx, last)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if res.DivergedAt != 0 {
		t.Fatalf("unexpected divergence at seq %d", res.DivergedAt)
	}
	if res.BaseSeq == 0 {
		t.Fatal("expected replay to start from a snapshot with snapshot_every=3")
	}
	if got := e.stateHash(t); got != want {
		t.Fatal("replay did not rebuild the identical state")
	}

	// Replaying to an interior position rebuilds that state too.
	mid, err := e.store.CommandBySeq(ctx, 5)
	if err != nil {
		t.Fatalf("CommandBySeq: %v", err)
	}
	if _, err := e.engine.Replay(ctx, 5); err != nil {
		t.Fatalf("Replay(5): %v", err)
	}
	if got := e.stateHash(t); got != mid.PostHash {
		t.Fatal("interior replay does not match the recorded post-state")
	}
}

func TestReplayDetectsOutOfBandMutation(t *testing.T) {
	e := newEnv(t, 0)
	e.seed(t)
	e.addClip(t, "clip-a", 0, 100)
	ctx := context.Background()

	// A write that bypasses the dispatcher breaks the recorded hash chain.
	proj, err := e.store.FirstProject(ctx)
	if err != nil {
		t.Fatalf("FirstProject: %v", err)
	}
	proj.Name = "tampered"
	if err := e.store.SaveProject(ctx, proj); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}

	if _, err := e.engine.Undo(ctx); !errors.Is(err, edit.ErrReplayDivergence) {
		t.Fatalf("expected replay divergence, got %v", err)
	}
}

func TestAppendAfterUndoBranchesTheLog(t *testing.T) {
	e := newEnv(t, 0)
	e.seed(t)
	e.addClip(t, "clip-a", 0, 100) // seq 5
	ctx := context.Background()

	if _, err := e.engine.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	e.addClip(t, "clip-b", 200, 50) // seq 6, branches off seq 4
	branchHash := e.stateHash(t)

	five, err := e.store.CommandBySeq(ctx, 5)
	if err != nil {
		t.Fatalf("CommandBySeq(5): %v", err)
	}
	six, err := e.store.CommandBySeq(ctx, 6)
	if err != nil {
		t.Fatalf("CommandBySeq(6): %v", err)
	}
	if five.ParentID != six.ParentID {
		t.Fatal("both branches should share the same parent command")
	}

	// The abandoned branch stays replayable.
	if _, err := e.engine.Replay(ctx, 5); err != nil {
		t.Fatalf("Replay(5): %v", err)
	}
	if got := e.stateHash(t); got != five.PostHash {
		t.Fatal("replaying the abandoned branch does not match its recorded state")
	}

	// And so does the new one.
	if _, err := e.engine.Replay(ctx, 6); err != nil {
		t.Fatalf("Replay(6): %v", err)
	}
	if got := e.stateHash(t); got != branchHash {
		t.Fatal("replaying the live branch does not match its state")
	}

	// Redo after moving back to the shared parent follows the newest branch.
	if _, err := e.engine.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	next, err := e.engine.Redo(ctx)
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if next.Seq != 6 {
		t.Fatalf("redo should follow the newest branch (seq 6), got %d", next.Seq)
	}
}

func TestReplayToZeroClearsState(t *testing.T) {
	e := newEnv(t, 0)
	e.seed(t)
	ctx := context.Background()

	if _, err := e.engine.Replay(ctx, 0); err != nil {
		t.Fatalf("Replay(0): %v", err)
	}
	if got := e.stateHash(t); got != oplog.EmptyStateHash() {
		t.Fatal("replay to zero should clear all entities")
	}
	pointer, err := e.store.UndoSeq(ctx)
	if err != nil || pointer != 0 {
		t.Fatalf("pointer should be 0, got %d (%v)", pointer, err)
	}
}
