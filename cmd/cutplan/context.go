package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"cutplan/internal/config"
	"cutplan/internal/edit"
	"cutplan/internal/logging"
	"cutplan/internal/project"
	"cutplan/internal/replay"
)

type commandContext struct {
	configFlag  *string
	projectFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, projectFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		projectFlag: projectFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) projectPath() (string, error) {
	if c.projectFlag == nil || strings.TrimSpace(*c.projectFlag) == "" {
		return "", fmt.Errorf("project file path is required (use --project)")
	}
	return config.ExpandPath(strings.TrimSpace(*c.projectFlag))
}

// session bundles an open project file with the editing machinery built on
// top of it.
type session struct {
	cfg    *config.Config
	store  *project.Store
	disp   *edit.Dispatcher
	engine *replay.Engine
	logger *slog.Logger
}

// withSession opens the project file named by --project, runs fn, and closes
// the file afterwards.
func (c *commandContext) withSession(fn func(*session) error) error {
	path, err := c.projectPath()
	if err != nil {
		return err
	}
	return c.withSessionAt(path, fn)
}

func (c *commandContext) withSessionAt(path string, fn func(*session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	store, err := project.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	disp := edit.NewDispatcher(store, logger, cfg.History.SnapshotEvery)
	return fn(&session{
		cfg:    cfg,
		store:  store,
		disp:   disp,
		engine: replay.NewEngine(store, disp, logger),
		logger: logger,
	})
}
