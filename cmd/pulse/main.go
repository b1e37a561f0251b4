package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/pulse.report/internal/api"
	"github.com/banshee-data/pulse.report/internal/capture"
	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/progressmux"
	"github.com/banshee-data/pulse.report/internal/publish"
	"github.com/banshee-data/pulse.report/internal/session"
	"github.com/banshee-data/pulse.report/internal/timeutil"
	"github.com/banshee-data/pulse.report/internal/version"
	"github.com/banshee-data/pulse.report/internal/vitals"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPathFlag  = flag.String("db-path", "pulse.db", "path to sqlite DB file")
	configFile  = flag.String("config", "", "Path to PPG config file (json or yaml); built-in defaults when empty")
	sourceKind  = flag.String("source", "synthetic", "Frame source: synthetic, images or disabled")
	framesDir   = flag.String("frames-dir", "", "Directory of frame images for -source=images")
	framesLoop  = flag.Bool("frames-loop", true, "Restart from the first image when -frames-dir is exhausted")
	natsURL     = flag.String("nats-url", "", "NATS server URL; measurements are not published when empty")
	natsSubject = flag.String("nats-subject", publish.DefaultSubject, "NATS subject for published measurements")
	devMode     = flag.Bool("dev", false, "Read migrations from disk instead of the embedded copy")
	versionFlag = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s migrate <up|down|status|version|force|help>\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String())
		return
	}

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		db.DevMode = *devMode
		os.Exit(db.RunMigrateCommand(flag.Args()[1:], *dbPathFlag, os.Stdout))
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyPPGConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadPPGConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	clock := timeutil.RealClock{}
	source, err := newSource(*sourceKind, *framesDir, *framesLoop, clock)
	if err != nil {
		log.Fatalf("failed to create frame source: %v", err)
	}

	db.DevMode = *devMode
	database, err := db.NewDB(*dbPathFlag)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	events := progressmux.New()
	defer events.Close()

	// notify holds the best-effort consumers; sink adds the store in front
	notify := vitals.NewMultiSink()
	notify.Add("events", events)
	sink := vitals.NewMultiSink()
	sink.Add("db", database)
	sink.Add("events", events)
	if *natsURL != "" {
		nc, err := publish.Connect(*natsURL)
		if err != nil {
			log.Printf("NATS unavailable, measurements will not be published: %v", err)
		} else {
			defer nc.Close()
			pub := publish.NewPublisher(nc, *natsSubject)
			notify.Add("nats", pub)
			sink.Add("nats", pub)
		}
	}

	ctrl := session.NewController(session.Options{
		Source:    source,
		Config:    cfg,
		Clock:     clock,
		Estimator: ppg.NewEstimator(cfg, nil),
		Sink:      sink,
		Journal:   database,
		Progress:  events.PublishProgress,
	})
	recorder := vitals.NewRecorder(database, notify, cfg, clock)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// sampling loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.Drive(ctx, cfg.GetTickInterval()); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("session driver stopped: %v", err)
		}
		ctrl.Close()
		log.Print("session driver terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		srv := api.NewServer(ctrl, recorder, database, events)
		mux := srv.ServeMux()
		srv.AttachDebugRoutes(mux)
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach admin routes: %v", err)
		}
		mux.Handle("/metrics", monitoring.Handler(monitoring.NewRegistry()))

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("pulse %s listening on %s (source=%s)", version.Version, *listen, source.Name())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// newSource builds the frame source named by kind.
func newSource(kind, dir string, loop bool, clock timeutil.Clock) (capture.Source, error) {
	switch kind {
	case "synthetic":
		return capture.NewSyntheticSource(capture.DefaultSyntheticConfig(), clock), nil
	case "images":
		if dir == "" {
			return nil, errors.New("-frames-dir is required for -source=images")
		}
		return capture.NewImageDirSource(dir, loop, clock), nil
	case "disabled", "none":
		return capture.NewDisabledSource(), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want synthetic, images or disabled)", kind)
	}
}
