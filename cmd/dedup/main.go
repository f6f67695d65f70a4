// Package main is a command line tool that removes repeated access point
// records from JSON files without touching the registry.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/sebasr/wifi-registry/internal/dedup"
	"github.com/sebasr/wifi-registry/internal/logging"
)

func main() {
	logger, err := logging.New("info", "console", "wifi-dedup")
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(os.Args[1:], os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("dedup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer, logger *zap.Logger) error {
	fs := flag.NewFlagSet("wifi-dedup", flag.ContinueOnError)
	dir := fs.String("dir", "", "deduplicate every *.json file in this directory")
	out := fs.String("out", "", "write the result to this file instead of stdout")
	fields := fs.String("fields", "", "comma separated identity fields (default: bssid,frequency,rssi,ssid,timestamp,channel_bandwidth,capabilities)")
	summary := fs.Bool("summary", false, "print only the counts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine := dedup.NewEngine(splitFields(*fields)...)
	files := fs.Args()

	var (
		result dedup.Result
		err    error
	)
	switch {
	case *dir != "" && len(files) > 0:
		return errors.New("use either -dir or file arguments, not both")
	case *dir != "":
		result, err = engine.DedupDir(*dir)
	case len(files) > 0:
		result, err = engine.DedupFiles(files...)
	default:
		result, err = engine.DedupStream(stdin)
	}
	if err != nil {
		return err
	}

	logger.Info("dedup finished",
		zap.Int("input", result.InputCount),
		zap.Int("output", result.OutputCount),
		zap.Int("removed", result.Removed),
		zap.Int("skipped", result.Skipped))

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if *summary {
		result.Records = nil
		return enc.Encode(result)
	}
	return enc.Encode(result.Records)
}

func splitFields(list string) []string {
	var fields []string
	for _, f := range strings.Split(list, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
