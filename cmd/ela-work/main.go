package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CharellKing/ela-work/config"
	"github.com/CharellKing/ela-work/pkg/client"
	"github.com/CharellKing/ela-work/service/gateway"
	"github.com/CharellKing/ela-work/service/orchestrator"
	"github.com/CharellKing/ela-work/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const closeTimeout = 30 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path of the yaml configuration")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		log.Errorf("ela-work: %+v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if !utils.FileIsExisted(configPath) {
		return errors.Errorf("config file %s not found", configPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.WithStack(err)
	}
	if cfg.GatewayCfg == nil {
		return errors.New("gateway section is required")
	}
	utils.InitLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.New(ctx, cfg.TargetESConfig(), cfg.Client)
	if err != nil {
		return errors.WithStack(err)
	}
	defer c.Close()
	ctx = utils.SetCtxKeyClusterVersion(ctx, c.ClusterVersion())

	ec, err := orchestrator.NewExecutionContext(cfg.Orchestrator, c.ClusterVersion())
	if err != nil {
		return errors.WithStack(err)
	}
	o := orchestrator.NewOrchestrator(context.WithoutCancel(ctx), c, cfg.Orchestrator, ec)

	runErr := gateway.NewESGateway(cfg.GatewayCfg, o).Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := o.Close(closeCtx); err != nil {
		utils.GetLogger(ctx).Errorf("close orchestrator: %+v", err)
	}
	stats := o.Stats()
	utils.GetLogger(ctx).Infof("stopped: %d works submitted, %d succeeded, %d failed in %d batches",
		stats.Submitted, stats.Succeeded, stats.Failed, stats.FlushedBatches)
	return runErr
}
