package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/camera"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/config"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/gphoto"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/history"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/monitor"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/photos"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/web"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	cfgFile   string
	debug     bool
)

var rootCmd = &cobra.Command{
	Use:   "canon-remote",
	Short: "Canon Remote - DSLR web remote control",
	Long: `Canon Remote controls a tethered Canon DSLR through gphoto2 and serves
a small web UI for capture, live preview, card import and gallery browsing.`,
	Version: fmt.Sprintf("%s (built: %s)", Version, BuildTime),
	Run:     runApp,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check system requirements",
	Long:  "Check that gphoto2 is installed and the configured directories are usable",
	Run:   runCheck,
}

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "List connected cameras",
	Long:  "Run gphoto2 auto-detection and list connected cameras",
	Run:   runCameras,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().String("base", "", "base data directory")
	rootCmd.Flags().Int("port", 0, "web server port")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(camerasCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runApp(cmd *cobra.Command, args []string) {
	setupLogging()

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Msg("Starting Canon Remote")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Override config with command-line flags
	if base, _ := cmd.Flags().GetString("base"); base != "" {
		cfg.Paths.Base = base
		cfg.Paths.Photos = filepath.Join(base, "photos")
		cfg.Paths.Www = filepath.Join(base, "www")
		cfg.Paths.Tmp = filepath.Join(base, "tmp")
		cfg.History.Path = filepath.Join(base, "history.db")
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Web.Port = port
	}

	for _, dir := range []string{cfg.Paths.Base, cfg.Paths.Www, cfg.Paths.Tmp} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("Failed to create directory")
		}
	}

	photoStore, err := photos.NewStore(cfg.Paths.Photos)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open photo root")
	}

	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Warn().Err(err).Msg("Event history unavailable, continuing without it")
		hist = nil
	} else {
		defer hist.Close()
	}

	stateStore := config.NewStore(cfg.Paths.Base)
	cli := gphoto.NewCLI(cfg.Camera.Bin)
	lock := camera.NewDeviceLock()

	startHold := func(waitSeconds int) (camera.Process, error) {
		p, err := cli.StartHold(waitSeconds)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	startMovie := func() (camera.Process, io.ReadCloser, error) {
		p, out, err := cli.StartMovie()
		if err != nil {
			return nil, nil, err
		}
		return p, out, nil
	}
	sup := camera.NewSupervisor(lock, cli, stateStore, startHold, startMovie,
		stateStore.LoadHoldWait(cfg.Camera.HoldWaitDefault))

	session := camera.NewSession(lock, cli, photoStore, sup, hist, camera.SessionOptions{
		CaptureCooldown: cfg.Camera.CaptureCooldown,
		CaptureAttempts: cfg.Camera.CaptureAttempts,
		CaptureRetryGap: cfg.Camera.CaptureRetryGap,
	})

	fetchOpts := camera.ImporterOptions{
		FetchAttempts: cfg.Camera.FetchAttempts,
		FetchRetryGap: cfg.Camera.FetchRetryGap,
	}
	importer := camera.NewImporter(lock, cli, stateStore, photoStore, sup, hist, fetchOpts)
	interval := camera.NewInterval(session)
	mirror := camera.NewMirror(lock, cli, stateStore, photoStore, fetchOpts)

	mon := monitor.New(cfg.Monitoring.UpdateInterval, cfg.Monitoring.CPUSmoothingSamples, cfg.Paths.Photos)

	log.Info().Str("photos", cfg.Paths.Photos).Msg("Photo root ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	server := web.NewServer(cfg, web.Deps{
		Session:    session,
		Supervisor: sup,
		Importer:   importer,
		Interval:   interval,
		Mirror:     mirror,
		Photos:     photoStore,
		History:    hist,
		Monitor:    mon,
	})

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		if err := server.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Web server error")
		}
	}()

	log.Info().
		Str("address", fmt.Sprintf("http://%s:%d", cfg.Web.Host, cfg.Web.Port)).
		Msg("Server is ready")

	<-sigChan
	log.Info().Msg("Shutting down gracefully...")
	cancel()

	select {
	case <-serverDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Shutdown timed out")
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}
