package main

import (
	"flag"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/logger"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/osmparser"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/spatialindex"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	mapFile     = flag.String("f", "./data/network.osm.pbf", "openstreetmap pbf file")
	zonesFile   = flag.String("zones", "./data/zones.txt", "zone centroids file (external_id lat lon per line)")
	networkFile = flag.String("out", "./data/network.graph", "output network file")
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

	ctx := datastructure.NewIdContext()
	modes := datastructure.NewModes()
	if err := osmparser.RegisterRoadModes(ctx, modes); err != nil {
		panic(err)
	}
	builder := datastructure.NewGraphBuilder(ctx, modes)
	rtree := spatialindex.NewRtree()

	osmParser := osmparser.NewOsmParser(builder, rtree, logger)
	if err := osmParser.Parse(*mapFile); err != nil {
		logger.Fatal("failed to parse openstreetmap file", zap.String("file", *mapFile), zap.Error(err))
	}

	zones, err := osmparser.ReadZonesFile(*zonesFile)
	if err != nil {
		logger.Fatal("failed to read zones", zap.String("file", *zonesFile), zap.Error(err))
	}
	cg := osmparser.NewConnectoidGenerator(builder, rtree, viper.GetFloat64("CONNECTOID_SEARCH_RADIUS_KM"),
		viper.GetInt("CONNECTOID_MAX_PER_ZONE"), logger)
	if _, err := cg.AddZones(zones); err != nil {
		logger.Fatal("failed to connect zones", zap.Error(err))
	}

	graph, err := builder.Build()
	if err != nil {
		logger.Fatal("failed to build network", zap.Error(err))
	}

	for _, mode := range graph.GetModes().All() {
		conn := graph.RunKosaraju(mode)
		if pairs := conn.DisconnectedZonePairs(); len(pairs) > 0 {
			logger.Warn("network has disconnected zone pairs", zap.String("mode", mode.GetExternalId()),
				zap.Int("components", conn.NumberOfComponents()), zap.Int("pairs", len(pairs)))
		}
	}

	if err := graph.WriteGraph(*networkFile); err != nil {
		logger.Fatal("failed to write network", zap.String("file", *networkFile), zap.Error(err))
	}

	logger.Sugar().Infof("Preprocessing completed successfully: %d vertices, %d links, %d zones written to %s",
		graph.NumberOfVertices(), osmParser.NumberOfLinks(), graph.NumberOfZones(), *networkFile)
}
