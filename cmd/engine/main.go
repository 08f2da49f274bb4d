package main

import (
	"context"
	"flag"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/assignment"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/http"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/http/usecases"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/logger"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	networkFile = flag.String("network", "./data/network.graph", "network file written by the preprocessor")
	configFile  = flag.String("config", "", "config file, defaults to ./data/config.yaml when present")
)

func main() {
	flag.Parse()
	var err error
	if *configFile != "" {
		err = util.ReadConfigFile(*configFile)
	} else {
		err = util.ReadConfig()
	}
	if err != nil {
		panic(err)
	}
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}

	graph, err := datastructure.ReadGraph(*networkFile)
	if err != nil {
		logger.Fatal("failed to read network", zap.String("file", *networkFile), zap.Error(err))
	}
	defaults, err := assignment.ConfigFromViper()
	if err != nil {
		logger.Fatal("invalid assignment config", zap.Error(err))
	}

	assignmentService, err := usecases.NewAssignmentService(logger, graph, defaults,
		usecases.EquilibriumRunnerFactory(logger), viper.GetInt("API_RESULT_CACHE_SIZE"),
		viper.GetInt("API_MAX_CONCURRENT_RUNS"))
	if err != nil {
		logger.Fatal("failed to create assignment service", zap.Error(err))
	}

	ctx, cleanup, err := NewContext()
	if err != nil {
		panic(err)
	}
	api := http.NewServer(logger)
	if _, err := api.Use(ctx, logger, viper.GetBool("API_USE_RATE_LIMIT"), assignmentService); err != nil {
		logger.Fatal("failed to start api", zap.Error(err))
	}

	signal := http.GracefulShutdown()

	logger.Info("Assignment Engine Server Stopping", zap.String("signal", signal.String()))
	cleanup()
	if err := api.Wait(); err != nil && err != context.Canceled {
		logger.Error("api stopped with error", zap.Error(err))
	}
	logger.Info("Assignment Engine Server Stopped")
}

func NewContext() (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	cb := func() {
		cancel()
	}

	return ctx, cb, nil
}
