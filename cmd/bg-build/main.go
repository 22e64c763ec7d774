// Command bg-build computes per-pad background statistics from pregenerated
// bunch-crossing files and stores them as a snapshot, so the Parametrised and
// Averaged strategies can start from the database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fcal-reco/beamcal/internal/background"
	"github.com/fcal-reco/beamcal/internal/config"
	"github.com/fcal-reco/beamcal/internal/geometry"
	"github.com/fcal-reco/beamcal/internal/lcioio"
	"github.com/fcal-reco/beamcal/internal/monitoring"
	"github.com/fcal-reco/beamcal/internal/store"
	"github.com/fcal-reco/beamcal/internal/version"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "Path to the JSON tuning config")
	dbPath     = flag.String("db", "beamcal.db", "sqlite database to store the snapshot in")
	nbx        = flag.Int("nbx", 0, "Bunch crossings per event (0 uses number_of_bx from the config)")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

// snapshotParams records how a snapshot was built.
type snapshotParams struct {
	Files      []string        `json:"files"`
	Crossings  int             `json:"crossings"`
	NumberOfBX int             `json:"number_of_bx"`
	Geometry   geometry.Params `json:"geometry"`
}

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String("bg-build"))
		return
	}
	monitoring.SetLogWriters(monitoring.LogWriters{Ops: os.Stderr})

	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	files := flag.Args()
	if len(files) == 0 {
		files = cfg.BackgroundFiles
	}
	n := *nbx
	if n <= 0 {
		n = cfg.GetNumberOfBX()
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	id, err := build(db, cfg, files, n)
	if err != nil {
		log.Fatalf("failed to build background snapshot: %v", err)
	}
	fmt.Printf("stored background snapshot %d (%d BX) in %s\n", id, n, *dbPath)
}

func build(db *store.DB, cfg *config.TuningConfig, files []string, nBX int) (int64, error) {
	geo, err := cfg.NewGeometry()
	if err != nil {
		return 0, err
	}
	crossings, err := lcioio.LoadBunchCrossings(files, geo, cfg.GetLCIO().GetHitCollection(), lcioio.FieldsFromConfig(cfg.GetLCIO()))
	if err != nil {
		return 0, err
	}
	return storeCrossings(db, cfg, geo, crossings, files, nBX)
}

func storeCrossings(db *store.DB, cfg *config.TuningConfig, geo *geometry.Cached, crossings []background.Crossing, files []string, nBX int) (int64, error) {
	stats, err := background.CrossingStats(geo, crossings, nBX)
	if err != nil {
		return 0, err
	}
	blob, err := store.EncodeStats(stats)
	if err != nil {
		return 0, err
	}
	params, err := json.Marshal(snapshotParams{
		Files:      files,
		Crossings:  len(crossings),
		NumberOfBX: nBX,
		Geometry:   cfg.GeometryParams(),
	})
	if err != nil {
		return 0, err
	}
	return db.InsertBackgroundSnapshot(&store.BackgroundSnapshot{
		TakenUnixNanos: time.Now().UnixNano(),
		Method:         cfg.GetBackgroundMethod(),
		NumberOfBX:     nBX,
		Layers:         geo.Layers(geometry.Left),
		Rings:          geo.Rings(geometry.Left),
		ParamsJSON:     string(params),
		GridBlob:       blob,
	})
}
