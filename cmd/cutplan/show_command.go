package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cutplan/internal/project"
	"cutplan/internal/timebase"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "show",
		Aliases: []string{"dump"},
		Short:   "Show the project tree: sequences, tracks, clips, and media",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				cmdCtx := cmd.Context()
				out := cmd.OutOrStdout()

				proj, err := s.store.FirstProject(cmdCtx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Project: %s (%s)\n", proj.Name, proj.ID)

				sequences, err := s.store.SequencesByProject(cmdCtx, proj.ID)
				if err != nil {
					return err
				}
				for _, seq := range sequences {
					fmt.Fprintf(out, "\nSequence %s  kind=%s rate=%s %dx%d playhead=%s\n",
						seq.Name, seq.Kind, seq.Rate, seq.Width, seq.Height,
						timebase.FormatTimecode(seq.Playhead, seq.Rate))

					tracks, err := s.store.TracksBySequence(cmdCtx, seq.ID)
					if err != nil {
						return err
					}
					rows := make([][]string, 0, 16)
					for _, tr := range tracks {
						clips, err := s.store.ClipsByTrack(cmdCtx, tr.ID)
						if err != nil {
							return err
						}
						if len(clips) == 0 {
							rows = append(rows, []string{trackLabel(tr), "", "", "", "", ""})
							continue
						}
						for _, c := range clips {
							rows = append(rows, []string{
								trackLabel(tr),
								c.Name,
								strconv.FormatInt(c.Start, 10),
								strconv.FormatInt(c.Duration, 10),
								fmt.Sprintf("[%d,%d)", c.SourceIn, c.SourceOut),
								yesNo(c.Enabled),
							})
						}
					}
					fmt.Fprintln(out, renderTable(out,
						[]string{"Track", "Clip", "Start", "Duration", "Source", "Enabled"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
					))
				}

				media, err := s.store.ListMedia(cmdCtx)
				if err != nil {
					return err
				}
				if len(media) > 0 {
					rows := make([][]string, 0, len(media))
					for _, m := range media {
						rows = append(rows, []string{
							m.FileName,
							strconv.FormatInt(m.Duration, 10),
							m.Rate.String(),
							fmt.Sprintf("%dx%d", m.Width, m.Height),
							strconv.Itoa(m.AudioChannels),
						})
					}
					fmt.Fprintln(out, "\nMedia:")
					fmt.Fprintln(out, renderTable(out,
						[]string{"File", "Duration", "Rate", "Size", "Channels"},
						rows,
						[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
					))
				}
				return nil
			})
		},
	}
}

func trackLabel(tr *project.Track) string {
	label := fmt.Sprintf("%s %d", tr.Type, tr.Index)
	if tr.Locked {
		label += " (locked)"
	}
	if !tr.Enabled {
		label += " (muted)"
	}
	return label
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
