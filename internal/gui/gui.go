// Package gui provides the graphical front-end for the offload client: a
// window listing active archive downloads with live progress, backed by
// the same driver, task registry, and event bus as the CLI. On Linux it
// checks for a display before starting the Fyne app lifecycle.
package gui

import (
	"fmt"
	"os"
	"runtime"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/offloadhq/offload-client/internal/api"
	"github.com/offloadhq/offload-client/internal/config"
	"github.com/offloadhq/offload-client/internal/driver"
	"github.com/offloadhq/offload-client/internal/events"
	"github.com/offloadhq/offload-client/internal/logging"
	"github.com/offloadhq/offload-client/internal/tasks"
)

var guiLogger *logging.Logger

// Run launches the download-manager window. It blocks until the window is
// closed.
func Run(cfgFile string) error {
	guiLogger = logging.New()

	if runtime.GOOS == "linux" {
		if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			return fmt.Errorf("gui: requires a display; DISPLAY and WAYLAND_DISPLAY are both unset")
		}
	}

	cfg, err := config.LoadCSV(cfgFile)
	if err != nil {
		return err
	}
	if cfg.MasterKey == "" {
		return config.ErrMissingMasterKey
	}

	apiClient, err := api.NewClient(cfg)
	if err != nil {
		return err
	}

	registry := tasks.NewRegistry()
	bus := events.NewBus()
	d := driver.New(cfg, apiClient, registry, bus)

	myApp := app.NewWithID("com.offloadhq.client")
	win := myApp.NewWindow("Offload Downloads")

	list := widget.NewList(
		func() int { return len(d.List()) },
		func() fyne.CanvasObject {
			return container.NewVBox(widget.NewLabel(""), widget.NewProgressBar())
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			row := obj.(*fyne.Container)
			items := d.List()
			if id >= len(items) {
				return
			}
			t := items[id]
			label := row.Objects[0].(*widget.Label)
			bar := row.Objects[1].(*widget.ProgressBar)
			label.SetText(fmt.Sprintf("%s — %s", t.DisplayName, t.Status))
			if t.TotalBytes != nil && *t.TotalBytes > 0 {
				bar.SetValue(float64(t.DownloadedBytes) / float64(*t.TotalBytes))
			}
		},
	)

	sub := bus.Subscribe()
	go func() {
		for range sub {
			list.Refresh()
		}
	}()

	win.SetContent(container.NewBorder(nil, nil, nil, nil, list))
	win.Resize(fyne.NewSize(480, 360))
	win.ShowAndRun()
	return nil
}
