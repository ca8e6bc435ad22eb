package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pfaudit/pipeline/internal/artifacts"
	"github.com/pfaudit/pipeline/internal/config"
	"github.com/pfaudit/pipeline/internal/pipeline"
	"github.com/pfaudit/pipeline/internal/ux"
	cli "github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:        "pf",
		Usage:       "Analysis pipeline orchestrator",
		Description: "Sequences analyzer phases into .pf/raw and .pf/readthis. Run 'pf run' to start a full run.",
		Commands: []*cli.Command{
			runCmd(),
			diffCmd(),
			statusCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "root", Usage: "Project root (defaults to cwd)"},
		&cli.BoolFlag{Name: "quiet", Usage: "Suppress terminal progress output"},
		&cli.BoolFlag{Name: "offline", Usage: "Skip phases that require network I/O"},
		&cli.BoolFlag{Name: "exclude-self", Usage: "Instruct the indexer to ignore the auditor's own source"},
		&cli.BoolFlag{Name: "wipe-cache", Usage: "Discard .cache/context/ml instead of preserving them"},
	}
}

func optionsFrom(cmd *cli.Command, diffSpec string) (config.Options, error) {
	root := cmd.String("root")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Options{}, fmt.Errorf("resolving working directory: %w", err)
		}
		root = wd
	}
	return config.Options{
		Root:        root,
		Quiet:       cmd.Bool("quiet"),
		Offline:     cmd.Bool("offline"),
		ExcludeSelf: cmd.Bool("exclude-self"),
		WipeCache:   cmd.Bool("wipe-cache"),
		DiffSpec:    diffSpec,
	}, nil
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a full pipeline over the project root",
		Flags: runFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := optionsFrom(cmd, "")
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			code, err := pipeline.Run(ctx, opts)
			if err != nil {
				return err
			}
			os.Exit(code)
			return nil
		},
	}
}

func diffCmd() *cli.Command {
	flags := append(runFlags(), &cli.StringFlag{
		Name:     "spec",
		Usage:    "Diff specifier (e.g. a git ref range) this run is scoped to",
		Required: true,
	})
	return &cli.Command{
		Name:  "diff",
		Usage: "Run a diff-scoped pipeline against a spec",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := optionsFrom(cmd, cmd.String("spec"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			code, err := pipeline.Run(ctx, opts)
			if err != nil {
				return err
			}
			os.Exit(code)
			return nil
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the live or most recent run's track progress and artifacts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Usage: "Project root (defaults to cwd)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root := cmd.String("root")
			if root == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolving working directory: %w", err)
				}
				root = wd
			}
			store := artifacts.New(root)
			ux.RenderStatus(store)
			return nil
		},
	}
}
