package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/offloadhq/offload-client/internal/events"
	"github.com/offloadhq/offload-client/internal/tasks"
)

func newDownloadCmd() *cobra.Command {
	var fileIndexFlag string

	cmd := &cobra.Command{
		Use:   "download <archive-id> <download-dir>",
		Short: "Download and decrypt an archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDriver()
			if err != nil {
				return err
			}

			var fileIndex *int
			if fileIndexFlag != "" {
				idx, err := strconv.Atoi(fileIndexFlag)
				if err != nil {
					return fmt.Errorf("cli: invalid --file-index %q: %w", fileIndexFlag, err)
				}
				fileIndex = &idx
			}

			archiveID, downloadDir := args[0], args[1]
			sub := bus.Subscribe()

			type result struct {
				taskID string
				err    error
			}
			results := make(chan result, 1)
			go func() {
				taskID, err := d.Start(context.Background(), archiveID, downloadDir, fileIndex)
				results <- result{taskID, err}
			}()

			var bar *progressbar.ProgressBar
			var res result
			for {
				select {
				case ev := <-sub:
					bar = renderProgress(bar, ev)
					if ev.Status == tasks.StatusCompleted || ev.Status == tasks.StatusError || ev.Status == tasks.StatusPaused {
						res = <-results
						return finish(res.taskID, res.err)
					}
				case res = <-results:
					return finish(res.taskID, res.err)
				}
			}
		},
	}

	cmd.Flags().StringVar(&fileIndexFlag, "file-index", "", "Extract a single entry from a bundle archive by index")
	return cmd
}

func finish(taskID string, err error) error {
	if err != nil {
		return fmt.Errorf("cli: download failed: %w", err)
	}
	logger.Infof("download complete: task %s", taskID)
	return nil
}

// renderProgress updates (creating on first use) a terminal progress bar
// from a download-progress event.
func renderProgress(bar *progressbar.ProgressBar, ev events.DownloadProgress) *progressbar.ProgressBar {
	if bar == nil {
		total := int64(-1)
		if ev.Total != nil {
			total = *ev.Total
		}
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetDescription(ev.Name),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowBytes(true),
		)
	}
	bar.Set64(ev.Downloaded)
	return bar
}

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <task-id>",
		Short: "Request cancellation of a running download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry.RequestCancel(args[0])
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known download tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range registry.List() {
				fmt.Println(describeTask(t))
			}
			return nil
		},
	}
}

func describeTask(t tasks.Task) string {
	if t.TotalBytes == nil {
		return fmt.Sprintf("%s [%s] %s: %d bytes", t.ID, t.Status, t.DisplayName, t.DownloadedBytes)
	}
	return fmt.Sprintf("%s [%s] %s: %d/%d bytes", t.ID, t.Status, t.DisplayName, t.DownloadedBytes, *t.TotalBytes)
}
