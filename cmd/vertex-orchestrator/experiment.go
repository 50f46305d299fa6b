package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/silent-stones/vertex-universal-orchestrator/conf"
	"github.com/silent-stones/vertex-universal-orchestrator/constants"
	"github.com/silent-stones/vertex-universal-orchestrator/internal/vertex"
	"github.com/silent-stones/vertex-universal-orchestrator/models"
	"github.com/silent-stones/vertex-universal-orchestrator/util"
	experimentYaml "github.com/silent-stones/vertex-universal-orchestrator/yaml"
)

var experimentCmd = &cli.Command{
	Name:  "experiment",
	Usage: "Manage experiments",
	Subcommands: []*cli.Command{
		experimentDeploy,
		experimentList,
		experimentDetail,
		experimentCancel,
	},
}

var experimentDeploy = &cli.Command{
	Name:      "deploy",
	Usage:     "Deploy an experiment definition file and monitor it to completion",
	ArgsUsage: "<experiment-file>",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "poll-interval",
			Usage: "seconds between status poll rounds, defaults to the configured value",
		},
		&cli.BoolFlag{
			Name:  "no-monitor",
			Usage: "submit the jobs and exit without polling",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("usage: experiment deploy <experiment-file>")
		}

		repoPath := cctx.String(FlagVoRepo)
		if err := conf.InitConfig(repoPath); err != nil {
			return fmt.Errorf("load config file failed, error: %+v", err)
		}
		cfg := conf.GetConfig()

		experiment, err := experimentYaml.ParseExperimentFile(cctx.Args().First())
		if err != nil {
			return err
		}

		jobService := vertex.NewRestJobService(experiment.Region, cfg.VERTEX.AccessToken)
		orchestrator := vertex.NewOrchestrator(experiment, jobService, vertex.NewSnapshotWriter(cfg.MONITOR.SnapshotDir))

		ctx := util.ReqContext()
		deployedJobs := orchestrator.Deploy(ctx)
		if len(deployedJobs) == 0 {
			color.Red("No jobs were deployed for experiment %s", experiment.ExperimentName)
		}

		store, err := vertex.OpenOrInitStore(registryDir(cfg, repoPath))
		if err != nil {
			return err
		}
		defer store.Close()
		saveRecord(store, experiment, orchestrator)

		if cctx.Bool("no-monitor") || len(deployedJobs) == 0 {
			renderStatusTable(orchestrator.JobStatuses(), orchestrator.DeployedJobs())
			return nil
		}

		pollInterval := time.Duration(cfg.MONITOR.PollIntervalSeconds) * time.Second
		if cctx.IsSet("poll-interval") {
			pollInterval = time.Duration(cctx.Int("poll-interval")) * time.Second
		}

		statuses := orchestrator.Monitor(ctx, pollInterval)
		saveRecord(store, experiment, orchestrator)

		renderStatusTable(statuses, orchestrator.DeployedJobs())
		for displayName, urls := range orchestrator.GetConsoleURLs() {
			fmt.Printf("%s\n  monitor: %s\n  logs:    %s\n", displayName, urls.Monitor, urls.Logs)
		}
		return nil
	},
}

var experimentList = &cli.Command{
	Name:  "list",
	Usage: "List stored experiments",
	Action: func(cctx *cli.Context) error {
		store, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer store.Close()

		names, err := store.List()
		if err != nil {
			return err
		}

		var rows [][]string
		for _, name := range names {
			record, err := store.Get(name)
			if err != nil {
				return fmt.Errorf("failed get experiment record: %s, error: %+v", name, err)
			}

			settled := 0
			for _, status := range record.JobStatuses {
				if constants.IsSettledStatus(status) {
					settled++
				}
			}
			updated := time.Unix(record.UpdatedAt, 0).Format("2006-01-02 15:04:05")
			rows = append(rows, []string{
				name,
				record.Config.Region,
				strconv.Itoa(len(record.Config.Jobs)),
				fmt.Sprintf("%d/%d", settled, len(record.JobStatuses)),
				updated,
			})
		}

		header := []string{"NAME", "REGION", "JOBS", "SETTLED", "UPDATED"}
		NewVisualTable(header, rows, nil).Generate()
		return nil
	},
}

var experimentDetail = &cli.Command{
	Name:      "detail",
	Usage:     "Show the jobs of one stored experiment",
	ArgsUsage: "<experiment-name>",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("usage: experiment detail <experiment-name>")
		}

		store, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer store.Close()

		record, err := store.Get(cctx.Args().First())
		if err != nil {
			return err
		}
		renderStatusTable(record.JobStatuses, record.DeployedJobs)
		return nil
	},
}

var experimentCancel = &cli.Command{
	Name:      "cancel",
	Usage:     "Cancel one job of a stored experiment",
	ArgsUsage: "<experiment-name> <display-name>",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 2 {
			return fmt.Errorf("usage: experiment cancel <experiment-name> <display-name>")
		}
		experimentName := cctx.Args().Get(0)
		displayName := cctx.Args().Get(1)

		repoPath := cctx.String(FlagVoRepo)
		if err := conf.InitConfig(repoPath); err != nil {
			return fmt.Errorf("load config file failed, error: %+v", err)
		}
		cfg := conf.GetConfig()

		store, err := vertex.OpenOrInitStore(registryDir(cfg, repoPath))
		if err != nil {
			return err
		}
		defer store.Close()

		record, err := store.Get(experimentName)
		if err != nil {
			return err
		}
		resourceID, ok := record.DeployedJobs[displayName]
		if !ok {
			return fmt.Errorf("job %s not found in experiment %s", displayName, experimentName)
		}

		jobService := vertex.NewRestJobService(record.Config.Region, cfg.VERTEX.AccessToken)
		if err := jobService.CancelJob(util.ReqContext(), resourceID); err != nil {
			color.Red("Cancel request for %s was rejected: %v", displayName, err)
			return nil
		}
		color.Green("Requested cancellation of job %s", displayName)
		return nil
	},
}

var jobCmd = &cli.Command{
	Name:  "job",
	Usage: "Manage deployed jobs",
	Subcommands: []*cli.Command{
		jobList,
	},
}

var jobList = &cli.Command{
	Name:  "list",
	Usage: "List jobs mirrored by the API process",
	Action: func(cctx *cli.Context) error {
		repoPath := cctx.String(FlagVoRepo)
		if err := conf.InitConfig(repoPath); err != nil {
			return fmt.Errorf("load config file failed, error: %+v", err)
		}

		keys, err := vertex.ListJobMetadataKeys()
		if err != nil {
			return err
		}

		var rows [][]string
		var rowColorList []RowColor
		for i, key := range keys {
			metadata, err := vertex.RetrieveJobMetadata(key)
			if err != nil {
				return fmt.Errorf("failed get job detail: %s, error: %+v", key, err)
			}

			submitted := time.Unix(metadata.SubmitTime, 0).Format("2006-01-02 15:04:05")
			rows = append(rows, []string{
				metadata.ExperimentName,
				metadata.DisplayName,
				metadata.MachineType,
				metadata.Status,
				submitted,
			})
			rowColorList = append(rowColorList, RowColor{
				row:    i,
				column: []int{3},
				color:  []tablewriter.Colors{statusColor(metadata.Status)},
			})
		}

		header := []string{"EXPERIMENT", "JOB", "MACHINE TYPE", "STATUS", "SUBMITTED"}
		NewVisualTable(header, rows, rowColorList).Generate()
		return nil
	},
}

func openStore(cctx *cli.Context) (*vertex.ExperimentStore, error) {
	repoPath := cctx.String(FlagVoRepo)
	if err := conf.InitConfig(repoPath); err != nil {
		return nil, fmt.Errorf("load config file failed, error: %+v", err)
	}
	return vertex.OpenOrInitStore(registryDir(conf.GetConfig(), repoPath))
}

func registryDir(cfg *conf.OrchestratorConfig, repoPath string) string {
	if cfg.MONITOR.RegistryDir != "" {
		return cfg.MONITOR.RegistryDir
	}
	return filepath.Join(repoPath, "experiments")
}

func saveRecord(store *vertex.ExperimentStore, experiment models.ExperimentConfig, orchestrator *vertex.Orchestrator) {
	record := models.ExperimentRecord{
		Config:       experiment,
		DeployedJobs: orchestrator.DeployedJobs(),
		JobStatuses:  orchestrator.JobStatuses(),
		UpdatedAt:    time.Now().Unix(),
	}
	if err := store.Put(experiment.ExperimentName, record); err != nil {
		color.Red("Failed to persist experiment record: %v", err)
	}
}

func renderStatusTable(statuses map[string]string, deployedJobs map[string]string) {
	var rows [][]string
	var rowColorList []RowColor
	i := 0
	for displayName, status := range statuses {
		rows = append(rows, []string{displayName, status, deployedJobs[displayName]})
		rowColorList = append(rowColorList, RowColor{
			row:    i,
			column: []int{1},
			color:  []tablewriter.Colors{statusColor(status)},
		})
		i++
	}

	header := []string{"JOB", "STATUS", "RESOURCE ID"}
	NewVisualTable(header, rows, rowColorList).Generate()
}

func statusColor(status string) tablewriter.Colors {
	switch status {
	case constants.JOB_STATE_SUCCEEDED:
		return tablewriter.Colors{tablewriter.Bold, tablewriter.FgGreenColor}
	case constants.JOB_STATE_FAILED, constants.STATUS_DEPLOYMENT_FAILED, constants.STATUS_ERROR:
		return tablewriter.Colors{tablewriter.Bold, tablewriter.FgRedColor}
	case constants.JOB_STATE_CANCELLED, constants.JOB_STATE_CANCELLING, constants.JOB_STATE_EXPIRED:
		return tablewriter.Colors{tablewriter.Bold, tablewriter.FgYellowColor}
	default:
		return tablewriter.Colors{}
	}
}
