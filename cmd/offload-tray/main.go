// Command offload-tray is a minimal, cross-platform system-tray companion
// for the download-and-decryption core: it optionally starts one archive
// download at launch, shows the number of active downloads in the tray
// tooltip, and offers a "Pause all" action. The tooltip is refreshed from
// the process's own task registry on every poll tick.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"fyne.io/systray"

	"github.com/offloadhq/offload-client/internal/api"
	"github.com/offloadhq/offload-client/internal/config"
	"github.com/offloadhq/offload-client/internal/driver"
	"github.com/offloadhq/offload-client/internal/events"
	"github.com/offloadhq/offload-client/internal/tasks"
)

var (
	registry *tasks.Registry
	drv      *driver.Driver
)

func main() {
	cfgFile := flag.String("config", "", "Configuration file path")
	archiveID := flag.String("archive-id", "", "Archive id to start downloading on launch")
	downloadDir := flag.String("download-dir", ".", "Destination directory for the initial download")
	flag.Parse()

	cfg, err := config.LoadCSV(*cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.MasterKey == "" {
		fmt.Fprintln(os.Stderr, config.ErrMissingMasterKey)
		os.Exit(1)
	}

	apiClient, err := api.NewClient(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	registry = tasks.NewRegistry()
	bus := events.NewBus()
	drv = driver.New(cfg, apiClient, registry, bus)

	if *archiveID != "" {
		go func() {
			if _, err := drv.Start(context.Background(), *archiveID, *downloadDir, nil); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}()
	}

	systray.Run(onReady, onExit)
}

func onReady() {
	systray.SetTitle("Offload")
	systray.SetTooltip("Offload downloads")

	quit := systray.AddMenuItem("Quit", "Stop the tray companion")
	pauseAll := systray.AddMenuItem("Pause all", "Request cancellation of every active download")

	ticker := time.NewTicker(2 * time.Second)
	go func() {
		for range ticker.C {
			refreshTooltip()
		}
	}()

	go func() {
		for {
			select {
			case <-pauseAll.ClickedCh:
				for _, t := range registry.List() {
					registry.RequestCancel(t.ID)
				}
			case <-quit.ClickedCh:
				ticker.Stop()
				systray.Quit()
				return
			}
		}
	}()
}

func refreshTooltip() {
	active := 0
	for _, t := range registry.List() {
		if t.Status == tasks.StatusDownloading || t.Status == tasks.StatusQueued {
			active++
		}
	}
	systray.SetTooltip(fmt.Sprintf("Offload: %d active download(s)", active))
}

func onExit() {}
