package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fcal-reco/beamcal/internal/candidate"
	"github.com/fcal-reco/beamcal/internal/config"
	"github.com/fcal-reco/beamcal/internal/cuts"
	"github.com/fcal-reco/beamcal/internal/lcioio"
	"github.com/fcal-reco/beamcal/internal/monitoring"
	"github.com/fcal-reco/beamcal/internal/publish"
	"github.com/fcal-reco/beamcal/internal/reco"
	"github.com/fcal-reco/beamcal/internal/store"
	"github.com/fcal-reco/beamcal/internal/version"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "Path to the JSON tuning config")
	inputPath  = flag.String("input", "", "LCIO file with calorimeter events")
	outputPath = flag.String("output", "", "LCIO file for candidates (optional)")
	dbPath     = flag.String("db", "", "sqlite database for background snapshots and candidates (optional)")
	brokers    = flag.String("kafka", "", "Comma-separated Kafka brokers (optional)")
	topic      = flag.String("topic", "beamcal.candidates", "Kafka topic for candidates")
	workers    = flag.Int("workers", 0, "Worker goroutines (0 uses the config value)")
	maxEvents  = flag.Int("max-events", 0, "Stop after this many events (0 for all)")
	debug      = flag.Bool("debug", false, "Enable per-event diagnostic logging")
	trace      = flag.Bool("trace", false, "Enable per-tower trace logging")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String("beamcal-reco"))
		return
	}
	if *inputPath == "" {
		log.Fatal("-input is required")
	}
	writers := monitoring.LogWriters{Ops: os.Stderr}
	if *debug {
		writers.Diag = os.Stderr
	}
	if *trace {
		writers.Trace = os.Stderr
	}
	monitoring.SetLogWriters(writers)

	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := run(ctx, cfg)
	if err != nil {
		log.Fatalf("reconstruction failed: %v", err)
	}
	fmt.Println(summary)
}

func run(ctx context.Context, cfg *config.TuningConfig) (reco.Summary, error) {
	geo, err := cfg.NewGeometry()
	if err != nil {
		return reco.Summary{}, err
	}
	policy, err := cuts.NewPolicy(cfg.CutParams())
	if err != nil {
		return reco.Summary{}, err
	}
	fields := lcioio.FieldsFromConfig(cfg.GetLCIO())

	var db *store.DB
	if *dbPath != "" {
		if db, err = store.Open(*dbPath); err != nil {
			return reco.Summary{}, fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	bg, err := resolveBackground(cfg, geo, db, fields)
	if err != nil {
		return reco.Summary{}, err
	}

	proc := reco.NewProcessor(geo, bg.model, policy, reco.Options{
		Seed:        cfg.GetRandomSeed(),
		Calibration: cfg.GetCalibrationFactor(),
		Tolerance:   cfg.MatchTolerance(),
	})

	lc := cfg.GetLCIO()
	reader, err := lcioio.Open(*inputPath, lcioio.ReaderOptions{
		HitCollection: lc.GetHitCollection(),
		MCCollection:  lc.GetMCCollection(),
		Fields:        fields,
		HitMinEnergy:  cfg.GetHitMinEnergy(),
		Acceptance:    candidate.NewAcceptance(geo),
	})
	if err != nil {
		return reco.Summary{}, err
	}
	defer reader.Close()

	var sinks reco.MultiSink
	if *outputPath != "" {
		w, err := lcioio.Create(*outputPath, lc.GetClusterCollection(), lc.GetRecoCollection())
		if err != nil {
			return reco.Summary{}, err
		}
		defer func() {
			if err := w.Close(); err != nil {
				monitoring.Opsf("failed to close %s: %v", *outputPath, err)
			}
		}()
		sinks = append(sinks, w)
	}
	if db != nil {
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return reco.Summary{}, err
		}
		runID, err := db.StartRun(string(cfgJSON), bg.snapshotID)
		if err != nil {
			return reco.Summary{}, err
		}
		monitoring.Opsf("recording candidates under run %s", runID)
		sinks = append(sinks, store.NewResultSink(db, runID))
	}
	if *brokers != "" {
		pub := publish.NewKafkaPublisher(publish.NewWriter(strings.Split(*brokers, ","), *topic))
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	n := *workers
	if n <= 0 {
		n = cfg.GetWorkers()
	}
	return reco.NewRunner(proc, n, *maxEvents).Run(ctx, reader, sinks)
}
