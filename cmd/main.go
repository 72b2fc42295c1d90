package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"general-display/pkg/catalog"
	"general-display/pkg/config"
	"general-display/pkg/device"
	"general-display/pkg/display"
	"general-display/pkg/globals"
	"general-display/pkg/logger"
	"general-display/pkg/network"
	"general-display/pkg/settings"
	"general-display/pkg/storage"
	"general-display/pkg/webui"
	"general-display/pkg/wifi"
)

//go:embed assets/*
var assets embed.FS

func main() {
	// Initialize logger first to capture all logs
	logger.Init(globals.LogsPath)

	log.Printf("Starting %s %s", globals.ProjectTitle, globals.FirmwareVersion)

	if err := config.Init(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.Get()
	if prev, changed, err := cfg.StampFirmware(globals.FirmwareVersion); err != nil {
		log.Printf("Failed to record firmware version: %v", err)
	} else if changed {
		log.Printf("Firmware changed from %q to %q", prev, globals.FirmwareVersion)
	}

	files, err := storage.New(globals.ImagesPath)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Sample pictures for a fresh device
	if err := seedImages(globals.ImagesPath); err != nil {
		log.Printf("Failed to seed images: %v", err)
	}

	medium, err := settings.OpenFileMedium(globals.SettingsPath)
	if err != nil {
		log.Fatalf("Failed to open settings: %v", err)
	}
	defer medium.Close()

	store := settings.NewStore(medium, settings.Fallback{
		Name:     cfg.GetString("fallbackName"),
		Password: cfg.GetString("fallbackPassword"),
	})

	hostname := cfg.GetString("hostname")
	httpPort := cfg.GetInt("httpPort")

	manager := network.NewManager(wifi.New(cfg.GetString("interface")), store, network.Options{
		Policy: network.StationPolicy(
			cfg.GetInt("connectAttempts"),
			time.Duration(cfg.GetInt("connectDelayMs"))*time.Millisecond,
		),
		Settle:  500 * time.Millisecond,
		MDNS:    network.NewMDNS(hostname, httpPort),
		Captive: network.NewCaptiveDNS(),
	})

	disp := openDisplay(cfg)

	dev := device.New(
		store,
		manager,
		catalog.New(cfg.GetInt("maxImages"), cfg.GetInt("maxPathLen")),
		disp,
		files.FS(),
		device.Options{
			Hostname:         hostname,
			SlideshowPeriod:  time.Duration(cfg.GetInt("slideshowPeriodMs")) * time.Millisecond,
			ReconfigureDelay: 2 * time.Second,
			RebootDelay:      globals.RebootDelay,
		},
	)
	dev.Boot()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dev.Run(ctx)

	id, _ := cfg.GetKey("id")
	server := webui.New(dev, files, webui.Options{
		DeviceID: fmt.Sprint(id),
		Width:    disp.Width(),
		Height:   disp.Height(),
	})
	if err := server.Start(fmt.Sprintf(":%d", httpPort)); err != nil {
		log.Fatalf("Failed to start web server: %v", err)
	}

	// Wait for interrupt signal, keep everything alive until then
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	server.Stop(shutdownCtx)
	cancel()
	manager.Shutdown()
	if oled, ok := disp.(*display.OLED); ok {
		oled.Close()
	}
}

// openDisplay falls back to an in-memory framebuffer when no panel is attached
func openDisplay(cfg *config.Config) display.Display {
	oled, err := display.OpenOLED(cfg.GetString("displayBus"))
	if err == nil {
		return oled
	}
	log.Printf("Display: %v, using framebuffer", err)
	return display.NewFramebuffer(cfg.GetInt("displayWidth"), cfg.GetInt("displayHeight"))
}

// seedImages copies the embedded pictures into an empty image directory
func seedImages(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read image dir: %w", err)
	}
	if len(entries) > 0 {
		return nil
	}

	embedded, err := fs.ReadDir(assets, "assets/images")
	if err != nil {
		return fmt.Errorf("failed to read assets: %w", err)
	}

	for _, entry := range embedded {
		if entry.IsDir() {
			continue
		}
		data, err := assets.ReadFile(path.Join("assets/images", entry.Name()))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, entry.Name()), data, 0644); err != nil {
			return err
		}
	}

	log.Printf("Seeded %d sample images", len(embedded))
	return nil
}
