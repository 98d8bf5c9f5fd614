package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"collabtext/engine"
	"collabtext/internal/ident"
	"collabtext/internal/wire"
)

func main() {
	if err := run(); err != nil {
		panic(err)
	}
}

func run() error {
	fs := flag.NewFlagSet("collabtext-agent", flag.ContinueOnError)
	peerID := fs.String("peer-id", "", "this agent's peer identifier (required, must be globally unique)")
	httpAddr := fs.String("http-addr", ":8080", "address to serve the local websocket hub on")
	dbPath := fs.String("db-path", "collabtext-agent.db", "path to the local bbolt database")
	discoverySvc := fs.String("discovery-service", "_collabtext._tcp", "mDNS service name peers advertise under")
	debug := fs.Bool("debug", false, "enable debug-level logging")

	if err := ff.Parse(fs, slices.Clone(os.Args[1:]), ff.WithEnvVarPrefix("COLLABTEXT_AGENT")); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			return nil
		}
		return err
	}
	if *peerID == "" {
		fs.Usage()
		return errors.New("agent: -peer-id is required")
	}

	log := newLogger(*debug)
	defer log.Sync()

	self := ident.PeerId(*peerID)

	db, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	startAt, err := db.LoadCounter()
	if err != nil {
		return err
	}
	eng := engine.New(self, startAt, log)

	persisted, err := db.LoadFrames()
	if err != nil {
		return err
	}
	log.Info("replaying persisted frames", zap.Int("count", len(persisted)))
	for _, f := range persisted {
		eng.Receive(f)
	}

	// Only frames executed from here on need to be (re)persisted —
	// everything loaded above is already on disk.
	eng.OnExecute(persistListener(eng, db, log))

	h := newHub(eng, log)
	go h.run()

	disc := newDiscovery(self, *discoverySvc, listenPort(*httpAddr), h, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := disc.run(ctx); err != nil {
			log.Warn("discovery stopped", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWs)
	srv := &http.Server{Addr: *httpAddr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		cancel()
		srv.Close()
	}()

	log.Info("collabtext agent listening", zap.String("addr", *httpAddr), zap.String("peer_id", string(self)))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return log
}

// listenPort extracts the numeric port from an address like ":8080"
// or "0.0.0.0:8080", for advertising over mDNS alongside it.
func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// persistListener returns an engine.OnExecute listener that appends
// every newly-executed frame to the local store and advances the
// persisted counter, so a restart resumes exactly where this run left
// off.
func persistListener(eng *engine.Engine, db *store, log *zap.Logger) func(wire.Frame) {
	return func(f wire.Frame) {
		if err := db.SaveFrame(f); err != nil {
			log.Error("persist frame", zap.Error(err))
			return
		}
		if err := db.SaveCounter(eng.NextCounter()); err != nil {
			log.Error("persist counter", zap.Error(err))
		}
	}
}
