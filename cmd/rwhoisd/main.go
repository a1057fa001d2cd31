package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"rwhoisd/pkg/loader"
	"rwhoisd/pkg/rwserver"
	"rwhoisd/pkg/sources/maxmind"
	"rwhoisd/pkg/store"
)

const version = "1.0.0"

func main() {
	port := flag.Int("port", 4321, "Port to listen on")
	serverAddress := flag.String("address", "", "Interface address to bind to (\"\" means all interfaces)")
	hostname := flag.String("hostname", "", "Hostname to advertise in the banner (defaults to the system hostname)")
	defaultLimit := flag.Int("default-limit", 0, "Default session response limit (0 means no limit)")
	minLimit := flag.Int("min-limit", 0, "Minimum value a client may set -limit to")
	maxLimit := flag.Int("max-limit", 256, "Maximum value a client may set -limit to")
	verbose := flag.Bool("verbose", false, "Log each accepted connection")
	schemaFile := flag.String("schema", "", "Path to the schema file (required)")
	dataFiles := flag.String("data", "", "Comma-separated list of data file paths (required)")
	maxmindASNDB := flag.String("maxmind-asn-db", "", "Path to a MaxMind ASN database, enabling network enrichment")
	maxmindCityDB := flag.String("maxmind-city-db", "", "Path to a MaxMind City database, enabling network enrichment")
	maxConns := flag.Int("max-conns", 256, "Maximum number of simultaneous connections")
	acceptQPS := flag.Float64("accept-qps", 100, "Maximum sustained rate of newly accepted connections per second")
	acceptBurst := flag.Int("accept-burst", 50, "Burst size for the accept-rate limiter")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("rwhoisd version %s\n", version)
		return
	}

	if *schemaFile == "" || *dataFiles == "" {
		fmt.Fprintf(os.Stderr, "Usage: rwhoisd -schema=<path> -data=<path>[,<path>...] [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	host := *hostname
	if host == "" {
		h, err := os.Hostname()
		if err != nil {
			h = "localhost"
		}
		host = h
	}

	st := store.New()
	if err := loader.LoadSchemaFile(st, *schemaFile); err != nil {
		log.Fatalf("ERROR: failed to load schema: %v", err)
	}

	var enricher loader.Enricher
	if *maxmindASNDB != "" && *maxmindCityDB != "" {
		readers, err := maxmind.Open(*maxmindASNDB, *maxmindCityDB)
		if err != nil {
			log.Fatalf("ERROR: failed to open MaxMind databases: %v", err)
		}
		defer readers.Close()
		enricher = &loader.MaxMindEnricher{Readers: readers}
	}

	for _, path := range strings.Split(*dataFiles, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if err := loader.LoadDataFile(st, path, enricher); err != nil {
			log.Fatalf("ERROR: failed to load data file %s: %v", filepath.Base(path), err)
		}
	}
	log.Printf("loaded %d objects from %s", st.ObjectCount(), *dataFiles)

	cfg := rwserver.ServerConfig{
		Port:           *port,
		ServerAddress:  *serverAddress,
		ServerHostname: host,
		DefaultLimit:   *defaultLimit,
		MinLimit:       *minLimit,
		MaxLimit:       *maxLimit,
		Verbose:        *verbose,
		MaxConns:       *maxConns,
		AcceptQPS:      *acceptQPS,
		Burst:          *acceptBurst,
	}
	srv := rwserver.New(st, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("ERROR: server stopped: %v", err)
	}
}
