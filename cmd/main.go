package main

import (
	"context"
	"errors"
	"os"

	"github.com/ryantate/typingpool-sub000/internal/shared"
	"github.com/ryantate/typingpool-sub000/internal/ui"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	if err := runner.app().Run(context.Background(), os.Args); err != nil {
		runner.writePlain("%s\n", ui.Failure(err))
		switch {
		case errors.Is(err, shared.ErrUnreviewedContent):
			logger.Warn("review pending submissions before finishing")
		case errors.Is(err, shared.ErrConfigMismatch):
			logger.Warn("rows reference a different storage location than the config")
		case errors.Is(err, shared.ErrAPIRequest), errors.Is(err, shared.ErrStorage):
			logger.Warn("remote call failed; re-run the command to resume")
		}
		runner.Close()
		os.Exit(1)
	}
}
