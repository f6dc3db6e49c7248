package occlusion

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cutplan/internal/project"
)

// Plan lists the store mutations required before a placement can hold
// without overlap. Updates carry complete replacement coordinates; the
// pre-image slices preserve what the residents looked like so commands can
// build exact inverses.
type Plan struct {
	Remove     []string
	Update     []*project.Clip
	Create     []*project.Clip
	RemovedPre []*project.Clip
	UpdatedPre []*project.Clip
}

// Empty reports whether the placement needs no resident changes.
func (p *Plan) Empty() bool {
	return len(p.Remove) == 0 && len(p.Update) == 0 && len(p.Create) == 0
}

// clipStore is the slice of the project store the resolver writes through.
type clipStore interface {
	ClipsByTrack(ctx context.Context, trackID string) ([]*project.Clip, error)
	SaveClipNoSnap(ctx context.Context, c *project.Clip) error
	DeleteClip(ctx context.Context, id string) error
}

// Resolve plans and applies the occlusion policy for a placement on one
// track. Clips listed in ignore (the clip being moved or resized) and
// disabled clips are left untouched.
func Resolve(ctx context.Context, store clipStore, trackID string, start, duration int64, ignore map[string]struct{}) (*Plan, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("placement duration must be positive, got %d", duration)
	}
	residents, err := store.ClipsByTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}

	plan := PlanPlacement(residents, start, duration, ignore)
	if err := ApplyPlan(ctx, store, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ApplyPlan writes a computed plan through the store. Removals run first so
// callers can read resident pre-images between planning and applying.
func ApplyPlan(ctx context.Context, store clipStore, plan *Plan) error {
	for _, id := range plan.Remove {
		if err := store.DeleteClip(ctx, id); err != nil {
			return err
		}
	}
	for _, c := range plan.Update {
		if err := store.SaveClipNoSnap(ctx, c); err != nil {
			return err
		}
	}
	for _, c := range plan.Create {
		if err := store.SaveClipNoSnap(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// PlanPlacement computes the occlusion plan without touching the store.
func PlanPlacement(residents []*project.Clip, start, duration int64, ignore map[string]struct{}) *Plan {
	end := start + duration
	plan := &Plan{}

	for _, r := range residents {
		if _, skip := ignore[r.ID]; skip {
			continue
		}
		if !r.Enabled {
			continue
		}
		rEnd := r.End()
		if rEnd <= start || r.Start >= end {
			continue
		}

		pre := *r

		switch {
		case r.Start >= start && rEnd <= end:
			// Fully covered by the placement.
			plan.Remove = append(plan.Remove, r.ID)
			plan.RemovedPre = append(plan.RemovedPre, &pre)

		case r.Start < start && rEnd > end:
			// Resident spans the whole interval: keep the head, carve a
			// new tail clip after the placement.
			tail := *r
			tail.ID = SplitID(r.ID, end)
			tail.Start = end
			tail.Duration = rEnd - end
			tail.SourceIn = r.SourceIn + (end - r.Start)
			plan.Create = append(plan.Create, &tail)

			head := *r
			head.Duration = start - r.Start
			head.SourceOut = r.SourceOut - (rEnd - start)
			plan.Update = append(plan.Update, &head)
			plan.UpdatedPre = append(plan.UpdatedPre, &pre)

		case r.Start < start:
			// Overlaps the left edge of the placement: trim the tail.
			head := *r
			head.Duration = start - r.Start
			head.SourceOut = r.SourceOut - (rEnd - start)
			plan.Update = append(plan.Update, &head)
			plan.UpdatedPre = append(plan.UpdatedPre, &pre)

		default:
			// Overlaps the right edge of the placement: trim the head.
			delta := end - r.Start
			tail := *r
			tail.Start = end
			tail.Duration = r.Duration - delta
			tail.SourceIn = r.SourceIn + delta
			plan.Update = append(plan.Update, &tail)
			plan.UpdatedPre = append(plan.UpdatedPre, &pre)
		}
	}
	return plan
}

// SplitID derives the id of a split remainder from its parent and the cut
// position, so replaying the same command recreates the same clip id.
// Shared with the blade-split command.
func SplitID(parentID string, pos int64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("clip-split:%s:%d", parentID, pos))).String()
}
