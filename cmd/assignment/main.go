package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/assignment"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/logger"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/output"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
	"go.uber.org/zap"
)

var (
	networkFile = flag.String("network", "./data/network.graph", "network file written by the preprocessor")
	demandFile  = flag.String("demand", "./data/demand.od", "bzip2 demand file (time periods and od matrices)")
	outputDir   = flag.String("out", "./output", "output directory")
	compress    = flag.Bool("compress", true, "bzip2 compress the per segment and per od outputs")
	configFile  = flag.String("config", "", "config file, defaults to ./data/config.yaml when present")

	odFile     = flag.String("od", "", "plain text \"origin destination veh/h\" lines, used instead of -demand")
	odMode     = flag.String("od-mode", "car", "mode external id of the -od demand")
	odDuration = flag.Int("od-duration", 3600, "time period duration (s) of the -od demand")
)

// readTripletDemands builds a single time period from an od triplet file.
func readTripletDemands(graph *datastructure.Graph) (*demand.Demands, error) {
	mode, ok := graph.GetModes().GetByExternalId(*odMode)
	if !ok {
		return nil, fmt.Errorf("unknown mode %s", *odMode)
	}
	tps := demand.NewTimePeriods()
	tp, err := tps.Register(datastructure.NewIdContext(), "default", "od file", 0, *odDuration)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(*odFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	demands := demand.NewDemands(graph.NumberOfZones(), tps)
	if err := demand.ReadODTriplets(f, graph, demands.GetOrCreate(mode.GetID(), tp.GetID())); err != nil {
		return nil, err
	}
	return demands, nil
}

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
	var demands *demand.Demands
	if *odFile != "" {
		demands, err = readTripletDemands(graph)
	} else {
		demands, err = demand.ReadDemands(*demandFile, datastructure.NewIdContext(), graph.GetModes())
	}
	if err != nil {
		logger.Fatal("failed to read demand", zap.String("demand", *demandFile), zap.String("od", *odFile),
			zap.Error(err))
	}

	cfg, err := assignment.ConfigFromViper()
	if err != nil {
		logger.Fatal("invalid assignment config", zap.Error(err))
	}
	ea, err := assignment.NewEquilibriumAssignment(graph, demands, cfg, logger)
	if err != nil {
		logger.Fatal("failed to prepare assignment", zap.Error(err))
	}

	res, runErr := ea.Run()
	if runErr != nil {
		logger.Error("assignment finished with failed time periods", zap.Error(runErr))
	}

	writer, err := output.NewWriter(graph, *outputDir, *compress, logger)
	if err != nil {
		logger.Fatal("failed to prepare output directory", zap.Error(err))
	}
	if err := writer.WriteAll(res); err != nil {
		logger.Fatal("failed to write results", zap.Error(err))
	}

	logger.Sugar().Infof("Assignment run %s completed: %d time periods written to %s", res.RunId,
		len(res.TimePeriods), *outputDir)
	if runErr != nil {
		logger.Fatal("assignment run had failures", zap.String("run_id", res.RunId))
	}
}
