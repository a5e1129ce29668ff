package main

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"pinky-api/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("seed init starting")

	out := os.Getenv("SEED_DATA_PATH")
	if out == "" {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatalf("cwd: %v", err)
		}
		out = filepath.Join(cwd, "seed-data.json")
	}

	store := storage.New()
	if err := store.BuildDefaultSeed(); err != nil {
		log.Fatalf("build seed: %v", err)
	}

	data, err := sonic.ConfigStd.MarshalIndent(store.ExportAll(), "", "  ")
	if err != nil {
		log.Fatalf("encode seed: %v", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		log.Fatalf("write seed: %v", err)
	}

	log.Infof("seed data written to %s", out)
}
