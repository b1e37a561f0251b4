// Command ppg-plot renders a PNG of one heart-rate pipeline run: the raw
// region intensities, the smoothed signal, the peak threshold and the
// detected peaks.
//
// The samples come from a CSV file, from the built-in synthetic source, or
// from the last completed session of a running pulse server.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/httputil"
	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/security"
)

var (
	csvPath    = flag.String("csv", "", "CSV file of raw samples, one per row (last column is used)")
	synthetic  = flag.Bool("synthetic", false, "Record a session from the synthetic frame source")
	serverURL  = flag.String("server", "", "Base URL of a pulse server, e.g. http://localhost:8080")
	duration   = flag.Duration("duration", 15*time.Second, "Observation window the samples span")
	tick       = flag.Duration("tick", 33*time.Millisecond, "Frame interval for -synthetic")
	configFile = flag.String("config", "", "Path to PPG config file (json or yaml)")
	outPath    = flag.String("out", "ppg.png", "Output PNG path")
)

func main() {
	flag.Parse()

	if err := security.CheckOutputPath(*outPath); err != nil {
		log.Fatalf("invalid -out: %v", err)
	}

	cfg := config.EmptyPPGConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadPPGConfig(*configFile); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	var a ppg.Analysis
	switch {
	case *serverURL != "":
		client := httputil.NewStandardClient(&http.Client{Timeout: 10 * time.Second})
		var err error
		if a, err = fetchAnalysis(client, *serverURL); err != nil {
			log.Fatalf("failed to fetch analysis: %v", err)
		}
	case *csvPath != "":
		f, err := os.Open(*csvPath)
		if err != nil {
			log.Fatalf("failed to open %s: %v", *csvPath, err)
		}
		raw, err := loadCSV(f)
		f.Close()
		if err != nil {
			log.Fatalf("failed to read %s: %v", *csvPath, err)
		}
		a = ppg.Analyze(raw, *duration, cfg, nil)
	case *synthetic:
		var err error
		if a, err = syntheticSession(cfg, *duration, *tick); err != nil {
			log.Fatalf("failed to record synthetic session: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err := renderPlot(a, *outPath); err != nil {
		log.Fatalf("failed to render plot: %v", err)
	}
	fmt.Printf("%d samples, %d peaks, threshold %.2f: %d bpm (%s)\n",
		len(a.Raw), len(a.Peaks), a.Threshold, a.Reading.BPM, a.Reading.Provenance)
	fmt.Printf("wrote %s\n", *outPath)
}

// fetchAnalysis reads the last completed session from a pulse server.
func fetchAnalysis(c httputil.HTTPClient, base string) (ppg.Analysis, error) {
	var a ppg.Analysis
	url := strings.TrimRight(base, "/") + "/api/session/analysis"
	if err := httputil.GetJSON(c, url, &a); err != nil {
		return ppg.Analysis{}, err
	}
	return a, nil
}
