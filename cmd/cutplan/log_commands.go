package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cutplan/internal/config"
)

func newLogCommand(ctx *commandContext) *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List the command log with the current undo position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				cmdCtx := cmd.Context()
				last, err := s.store.LastCommandSeq(cmdCtx)
				if err != nil {
					return err
				}
				pointer, err := s.store.UndoSeq(cmdCtx)
				if err != nil {
					return err
				}

				from := int64(1)
				if limit > 0 && last-limit >= 0 {
					from = last - limit + 1
				}
				cmds, err := s.store.CommandsInRange(cmdCtx, from, last)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(cmds))
				for _, rec := range cmds {
					marker := ""
					if rec.Seq == pointer {
						marker = "*"
					}
					rows = append(rows, []string{
						marker,
						strconv.FormatInt(rec.Seq, 10),
						rec.Type,
						shortID(rec.ID),
						shortID(rec.ParentID),
						rec.CreatedAt.Format("2006-01-02 15:04:05"),
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out,
					[]string{"", "Seq", "Command", "ID", "Parent", "Logged"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "%d commands, undo position %d\n", len(cmds), pointer)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&limit, "limit", "n", 0, "Show only the newest N commands")
	return cmd
}

func newUndoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the most recent command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				rec, err := s.engine.Undo(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Undid %s (seq %d)\n", rec.Type, rec.Seq)
				return nil
			})
		},
	}
}

func newRedoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Re-apply the next command on the newest branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				rec, err := s.engine.Redo(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Redid %s (seq %d)\n", rec.Type, rec.Seq)
				return nil
			})
		},
	}
}

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var target int64

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the entity state from the command log",
		Long: `Rebuild the entity state by re-executing logged commands from the nearest
snapshot, verifying the recorded state hashes along the way. With --to the
state is rebuilt at an older log position; without it the current position is
verified in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				cmdCtx := cmd.Context()
				to := target
				if to < 0 {
					var err error
					to, err = s.store.UndoSeq(cmdCtx)
					if err != nil {
						return err
					}
				}

				res, err := s.engine.Replay(cmdCtx, to)
				out := cmd.OutOrStdout()
				if res != nil && res.DivergedAt != 0 {
					fmt.Fprintf(out, "Replay diverged at seq %d; the log no longer matches the stored state\n", res.DivergedAt)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Replayed %d commands from base seq %d to seq %d\n",
					res.Replayed, res.BaseSeq, res.Target)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&target, "to", -1, "Log position to rebuild (default: current undo position)")
	return cmd
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		Aliases: []string{"validate"},
		Short:   "Check the project file for integrity issues",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				cmdCtx := cmd.Context()
				proj, err := s.store.FirstProject(cmdCtx)
				if err != nil {
					return err
				}
				issues, err := s.store.Validate(cmdCtx, proj.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(issues) == 0 {
					fmt.Fprintln(out, "Project file is consistent")
					return nil
				}
				rows := make([][]string, 0, len(issues))
				for _, issue := range issues {
					rows = append(rows, []string{issue.Entity, issue.ID, issue.Message})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Entity", "ID", "Issue"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				return fmt.Errorf("%d integrity issue(s) found", len(issues))
			})
		},
	}
}

func newSaveAsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save-as <dest>",
		Short: "Write an atomic copy of the project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				dest, err := expandDest(args[0])
				if err != nil {
					return err
				}
				if err := s.store.SaveTo(cmd.Context(), dest); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved copy to %s\n", dest)
				return nil
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func expandDest(path string) (string, error) {
	return config.ExpandPath(path)
}
