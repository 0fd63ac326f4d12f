package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ryantate/typingpool-sub000/internal/repositories"
	"github.com/ryantate/typingpool-sub000/internal/shared"
	"github.com/ryantate/typingpool-sub000/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupProject creates the config file when missing, then the project directories and the lifecycle cache.
func (r *Runner) SetupProject(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if config == nil {
		if _, err := os.Stat(configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				return err
			}
			r.writePlain("%s\n", ui.Success("config written to %s, edit it and run setup again", configPath))
			return nil
		}

		var err error
		if config, err = r.loadConfig(cmd); err != nil {
			return err
		}
	}

	for _, dir := range []string{config.AudioDir(), filepath.Dir(config.RowsPath())} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}

	r.logger.Info("initializing lifecycle cache", "path", config.CachePath())
	cache, err := repositories.OpenUnitCache(config.CachePath())
	if err != nil {
		return err
	}
	defer cache.Close()

	r.logger.Infof("setup complete for project: %v", config.Project.ID)
	return r.writePlain("%s\n", ui.Success("project %s ready in %s", config.Project.ID, config.Project.Dir))
}

// setupCommand prepares a project directory.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, project directories and lifecycle cache",
		Action: r.SetupProject,
	}
}
