package main

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/config"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/gphoto"
)

func runCheck(cmd *cobra.Command, args []string) {
	setupLogging()

	log.Info().Msg("Checking system requirements...")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("✓ Configuration loaded")
	log.Info().Str("bin", cfg.Camera.Bin).Msg("Camera binary")
	log.Info().Str("base", cfg.Paths.Base).Msg("Base directory")

	if _, err := exec.LookPath(cfg.Camera.Bin); err != nil {
		log.Error().Err(err).Msg("✗ gphoto2 not found in PATH")
		log.Info().Msg("Install: sudo apt-get install gphoto2")
		return
	}
	log.Info().Msg("✓ gphoto2 installed")

	for _, dir := range []string{cfg.Paths.Base, cfg.Paths.Photos, cfg.Paths.Www, cfg.Paths.Tmp} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error().Err(err).Str("dir", dir).Msg("✗ Directory not usable")
			return
		}
	}
	log.Info().Msg("✓ Directories usable")
	log.Info().Msg("")
	log.Info().Msg("System ready! You can now:")
	log.Info().Msg("  1. Connect a camera via USB")
	log.Info().Msg("  2. Start server: canon-remote")
}

func runCameras(cmd *cobra.Command, args []string) {
	setupLogging()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cli := gphoto.NewCLI(cfg.Camera.Bin)
	cams, err := cli.AutoDetect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Auto-detect failed")
	}

	if len(cams) == 0 {
		log.Info().Msg("No cameras detected")
		return
	}
	for _, c := range cams {
		log.Info().Str("model", c.Model).Str("port", c.Port).Msg("Camera detected")
	}
}
