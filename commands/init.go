package commands

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"teacher1/config"

	log "github.com/sirupsen/logrus"
)

// RunInit writes a default config, refusing to overwrite an existing file.
func RunInit(ctx context.Context, cfg *config.Config) {
	if _, err := os.Stat(cfg.Path()); err == nil {
		log.Fatalf("Config %s already exists", cfg.Path())
	} else if !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to check config: %v", err)
	}

	if err := cfg.Save(); err != nil {
		log.Fatalf("Failed to save config: %v", err)
	}
	log.Infof("Wrote default config to %s", cfg.Path())
}
