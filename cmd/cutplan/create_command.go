package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cutplan/internal/edit"
	"cutplan/internal/project"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "create <name>",
		Aliases: []string{"init"},
		Short:   "Create a project file with an empty timeline",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("project name is required")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(*ctx.projectFlag)
			if path == "" {
				path = filepath.Join(cfg.Paths.ProjectDir, fileSlug(name)+".cutplan")
			}

			return ctx.withSessionAt(path, func(s *session) error {
				cmdCtx := cmd.Context()
				if _, err := s.disp.Apply(cmdCtx, edit.CmdProjectCreate, &edit.ProjectCreateArgs{
					ID:   uuid.NewString(),
					Name: name,
				}); err != nil {
					return err
				}

				proj, err := s.store.FirstProject(cmdCtx)
				if err != nil {
					return err
				}
				sequenceID := uuid.NewString()
				if _, err := s.disp.Apply(cmdCtx, edit.CmdSequenceCreate, &edit.SequenceCreateArgs{
					ID:        sequenceID,
					ProjectID: proj.ID,
					Name:      "Sequence 1",
					Kind:      project.SequenceTimeline,
					Rate:      cfg.FrameRate(),
					Width:     cfg.Sequence.Width,
					Height:    cfg.Sequence.Height,
				}); err != nil {
					return err
				}
				for _, trackType := range []project.TrackType{project.TrackVideo, project.TrackAudio} {
					if _, err := s.disp.Apply(cmdCtx, edit.CmdTrackCreate, &edit.TrackCreateArgs{
						ID:         uuid.NewString(),
						SequenceID: sequenceID,
						Type:       trackType,
						Index:      0,
					}); err != nil {
						return err
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Created project %q at %s\n", name, s.store.Path())
				return nil
			})
		},
	}
}

func fileSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, slug)
	if slug == "" {
		slug = "project"
	}
	return slug
}
