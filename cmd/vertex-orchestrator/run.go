package main

import (
	"os"
	"strconv"
	"time"

	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	cors "github.com/itsjamie/gin-cors"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/silent-stones/vertex-universal-orchestrator/conf"
	"github.com/silent-stones/vertex-universal-orchestrator/internal/initializer"
	"github.com/silent-stones/vertex-universal-orchestrator/internal/vertex"
	"github.com/silent-stones/vertex-universal-orchestrator/util"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Start the orchestrator API process",
	Action: func(cctx *cli.Context) error {
		logs.GetLogger().Info("Start in orchestrator API mode.")

		if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
			logs.GetLogger().Error(err)
		}

		repoPath := cctx.String(FlagVoRepo)
		os.Setenv("VO_PATH", repoPath)
		initializer.ProjectInit(repoPath)

		r := gin.Default()
		r.Use(cors.Middleware(cors.Config{
			Origins:         "*",
			Methods:         "GET, PUT, POST, DELETE",
			RequestHeaders:  "Origin, Authorization, Content-Type",
			ExposedHeaders:  "",
			MaxAge:          50 * time.Second,
			ValidateHeaders: false,
		}))
		pprof.Register(r)

		v1 := r.Group("/api/v1")
		vertexManager(v1.Group("/vertex"))

		shutdownChan := make(chan struct{})
		httpStopper, err := util.ServeHttp(r, "vertex-api", ":"+strconv.Itoa(conf.GetConfig().API.Port))
		if err != nil {
			logs.GetLogger().Fatalf("failed to start vertex-api endpoint: %s", err)
		}

		finishCh := util.MonitorShutdown(shutdownChan,
			util.ShutdownHandler{Component: "vertex-api", StopFunc: httpStopper},
		)
		<-finishCh

		return nil
	},
}

func vertexManager(router *gin.RouterGroup) {
	router.POST("/experiments", vertex.ReceiveExperiment)
	router.GET("/experiments/:name/status", vertex.GetExperimentStatus)
	router.GET("/experiments/:name/urls", vertex.GetExperimentUrls)
	router.GET("/experiments/:name/stream", vertex.StreamExperimentStatus)
	router.DELETE("/jobs", vertex.CancelDeployedJob)
}
