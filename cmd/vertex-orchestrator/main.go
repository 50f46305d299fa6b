package main

import (
	"os"

	"github.com/urfave/cli/v2"
)

const (
	FlagVoRepo = "vo-repo"
)

func main() {
	app := &cli.App{
		Name:                 "vertex-orchestrator",
		Usage:                "Deploys containerized experiments as custom training jobs on Vertex AI, resolves the scheduling strategy each machine family requires, and monitors every job until it reaches a terminal state.",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    FlagVoRepo,
				EnvVars: []string{"VO_PATH"},
				Usage:   "orchestrator repo path",
				Value:   "~/.vertex-orchestrator",
			},
		},
		Commands: []*cli.Command{
			runCmd,
			experimentCmd,
			jobCmd,
		},
	}
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
	}
}
