package initializer

import (
	"github.com/filswan/go-swan-lib/logs"

	"github.com/silent-stones/vertex-universal-orchestrator/conf"
	"github.com/silent-stones/vertex-universal-orchestrator/constants"
	"github.com/silent-stones/vertex-universal-orchestrator/internal/vertex"
)

func ProjectInit(repoPath string) {
	if err := conf.InitConfig(repoPath); err != nil {
		logs.GetLogger().Fatal(err)
	}

	celeryService := vertex.NewCeleryService()
	celeryService.RegisterTask(constants.TASK_DEPLOY_EXPERIMENT, vertex.DeployExperimentTask)
	celeryService.Start()
}
