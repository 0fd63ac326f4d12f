// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// importCommand copies local audio chunks into the project
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Add audio chunks to the project, in transcript order",
		ArgsUsage: "<file>...",
		Action:    r.Import,
	}
}

// uploadCommand puts audio chunks into remote storage
func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "upload",
		Usage:  "Upload audio chunks that are not yet in remote storage",
		Action: r.Upload,
	}
}

// publishCommand renders and uploads question documents
func publishCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "publish",
		Usage:  "Publish the question document for every uploaded chunk",
		Action: r.Publish,
	}
}

// assignCommand creates marketplace units
func assignCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "assign",
		Usage:  "Create a marketplace unit for every published, unassigned chunk",
		Action: r.Assign,
	}
}

// collectCommand copies submitted transcripts into rows
func collectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "collect",
		Usage:  "Copy submitted transcripts from the marketplace",
		Action: r.Collect,
	}
}

// reviewCommand approves or rejects submissions
func reviewCommand(r *Runner) *cli.Command {
	flags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "feedback",
				Aliases: []string{"f"},
				Usage:   "Message sent to the worker",
			},
		}
	}
	return &cli.Command{
		Name:  "review",
		Usage: "Approve or reject a submitted transcript",
		Commands: []*cli.Command{
			{
				Name:  "approve",
				Usage: "Pay for a submission and keep its transcript",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "unit-id"},
				},
				Flags:  flags(),
				Action: r.Approve,
			},
			{
				Name:  "reject",
				Usage: "Refuse a submission and free its chunk for reassignment",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "unit-id"},
				},
				Flags:  flags(),
				Action: r.Reject,
			},
		},
	}
}

// reapCommand frees chunks whose units expired unworked
func reapCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "reap",
		Usage:  "Remove expired units that were never submitted",
		Action: r.Reap,
	}
}

// deleteCommand removes remote files without touching units
func deleteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete remote files",
		Commands: []*cli.Command{
			{
				Name:   "audio",
				Usage:  "Delete uploaded audio chunks",
				Action: r.DeleteAudio,
			},
			{
				Name:    "questions",
				Aliases: []string{"html"},
				Usage:   "Delete published question documents",
				Action:  r.DeleteQuestions,
			},
		},
	}
}

// finishCommand tears the project down remotely
func finishCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "finish",
		Usage:  "Remove every unit and every remote file of the project",
		Action: r.Finish,
	}
}

// statusCommand prints per-marker counts
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show project progress (no network calls)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// transcriptCommand assembles collected transcripts
func transcriptCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transcript",
		Usage: "Write the assembled transcript",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: md or txt",
				Value: "md",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default: transcript.<format> in the project directory, - for stdout)",
			},
		},
		Action: r.Transcript,
	}
}
