package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/offloadhq/offload-client/internal/tasks"
)

// newBatchCmd downloads several archives concurrently, rendering one
// mpb bar per archive.
func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <download-dir> <archive-id>...",
		Short: "Download and decrypt multiple archives concurrently",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDriver()
			if err != nil {
				return err
			}

			downloadDir := args[0]
			archiveIDs := args[1:]

			var out io.Writer = os.Stderr
			if !term.IsTerminal(int(os.Stderr.Fd())) {
				out = io.Discard
			}
			p := mpb.New(
				mpb.WithOutput(out),
				mpb.WithRefreshRate(300*time.Millisecond),
				mpb.WithWidth(60),
			)

			bars := make(map[string]*mpb.Bar, len(archiveIDs))
			var barsMu sync.Mutex

			sub := bus.Subscribe()
			done := make(chan struct{})
			go func() {
				for ev := range sub {
					barsMu.Lock()
					bar, ok := bars[ev.ID]
					if !ok {
						total := int64(100)
						if ev.Total != nil {
							total = *ev.Total
						}
						bar = p.AddBar(total,
							mpb.PrependDecorators(decor.Name(ev.Name, decor.WC{W: 20, C: decor.DSyncSpaceR})),
							mpb.AppendDecorators(decor.Percentage()),
						)
						bars[ev.ID] = bar
					}
					bar.SetCurrent(ev.Downloaded)
					if ev.Status == tasks.StatusCompleted || ev.Status == tasks.StatusError || ev.Status == tasks.StatusPaused {
						bar.SetCurrent(bar.Current())
					}
					barsMu.Unlock()
				}
				close(done)
			}()

			var wg sync.WaitGroup
			errs := make([]error, len(archiveIDs))
			for i, archiveID := range archiveIDs {
				wg.Add(1)
				go func(i int, archiveID string) {
					defer wg.Done()
					if _, err := d.Start(context.Background(), archiveID, downloadDir, nil); err != nil {
						errs[i] = fmt.Errorf("archive %s: %w", archiveID, err)
					}
				}(i, archiveID)
			}
			wg.Wait()
			p.Wait()

			for _, err := range errs {
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	return cmd
}
