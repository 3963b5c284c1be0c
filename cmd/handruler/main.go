package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/handruler/internal/app"
	"github.com/ayusman/handruler/internal/capture"
	"github.com/ayusman/handruler/internal/config"
	"github.com/ayusman/handruler/internal/export"
	"github.com/ayusman/handruler/internal/server"
	"github.com/ayusman/handruler/internal/session"
	"github.com/ayusman/handruler/internal/store"
	"github.com/ayusman/handruler/internal/tray"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to YAML config file")
	headless := flag.Bool("headless", false, "run without the preview window")
	useTray := flag.Bool("tray", false, "show a system tray menu")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr; \"off\" disables the API)")
	flag.Parse()

	fmt.Println("handruler - hand and forearm measurement")

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	repo, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open %s storage %s: %v", cfg.Storage.Driver, cfg.Storage.Path, err)
	}
	defer repo.Close()

	existing, err := repo.List()
	if err != nil {
		log.Fatalf("Failed to read saved records: %v", err)
	}
	firstHand := store.MaxHandIndex(existing) + 1
	log.Printf("Loaded %d saved records, next hand is #%d", len(existing), firstHand)

	exporters := export.NewManager(cfg.Export.PluginDir)
	if err := exporters.Discover(); err != nil {
		log.Printf("Failed to discover exporters in %s: %v", exporters.Dir(), err)
	}
	exportSink := export.NewSink(exporters, export.NewExecutor(cfg.ExportTimeout()))
	defer func() {
		exportSink.Wait()
		exportSink.Close()
	}()
	for _, exp := range exporters.List() {
		log.Printf("Exporter %s %s enabled", exp.Manifest.Name, exp.Manifest.Version)
	}

	sess := session.New(session.Config{
		Calibration:    cfg.CalibrationConfig(),
		Estimator:      cfg.EstimatorConfig(),
		FirstHandIndex: firstHand,
	}, &store.Fanout{Primary: repo, Hooks: []store.Sink{exportSink}})

	source := capture.Source{
		Device: cfg.Camera.Device,
		URL:    cfg.Camera.URL,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	}
	camera := capture.WithTransform(capture.NewCamera(source), capture.Transform{
		CropPercent:  cfg.Camera.CropPercent,
		ScalePercent: cfg.Camera.ScalePercent,
		Rotate:       cfg.Camera.Rotate,
	})
	log.Printf("Using camera %s", source)

	hub := server.NewHub()
	a := app.New(app.Config{
		Camera:         camera,
		DetectorConfig: cfg.DetectorConfig(),
		Session:        sess,
		RefBoxSize:     image.Pt(cfg.ReferenceObject.PixelLength, cfg.ReferenceObject.PixelHeight),
		FPS:            cfg.Camera.FPS,
		Headless:       *headless,
		Publisher:      hub,
	})
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start camera: %v", err)
	}
	defer a.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverDone := make(chan struct{})
	if cfg.Server.Addr != "off" {
		srv := server.New(server.Config{
			StaticDir:       findWebDir(),
			Session:         sess,
			ReferencePixels: func() float64 { return float64(refWidth(a, cfg)) },
			Records:         repo,
			Frames:          a,
			Hub:             hub,
		})
		go func() {
			defer close(serverDone)
			log.Printf("Starting server on %s", cfg.Server.Addr)
			if err := srv.Serve(ctx, cfg.Server.Addr); err != nil {
				log.Printf("Server failed: %v", err)
			}
		}()
	} else {
		close(serverDone)
	}

	if *useTray {
		runTray(ctx, a)
	} else {
		select {
		case <-ctx.Done():
		case <-a.Done():
		}
	}

	log.Println("Shutting down")
	stop()
	<-serverDone
}

// runTray blocks in the tray event loop until the user quits from the tray
// or the preview window, or ctx ends.
func runTray(ctx context.Context, a *app.App) {
	t := tray.New()
	t.OnCalibrate(func() {
		if err := a.Calibrate(); err != nil {
			log.Printf("Calibrate: %v", err)
		}
	})
	t.OnMeasure(func() {
		if err := a.StartMeasuring(); err != nil {
			log.Printf("Start measuring: %v", err)
		}
	})
	t.OnSave(func() {
		if _, err := a.Save(); err != nil {
			log.Printf("Save: %v", err)
		}
	})
	t.OnQuit(a.Quit)

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				t.Quit()
				return
			case <-a.Done():
				t.Quit()
				return
			case <-ticker.C:
				t.SetStatus(a.Session().Status())
			}
		}
	}()

	t.Run()
}

func refWidth(a *app.App, cfg *config.Config) int {
	if w := a.RefBox().Dx(); w > 0 {
		return w
	}
	return cfg.ReferenceObject.PixelLength
}

// loadConfig reads path, falling back to the defaults when the default
// path does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == config.DefaultConfigPath && errors.Is(err, os.ErrNotExist) {
		log.Printf("No config at %s, using defaults", path)
		return config.Default(), nil
	}
	return nil, err
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.handruler/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".handruler", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
