package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/s3transfer/transferctl/internal/constants"
	"github.com/s3transfer/transferctl/internal/events"
	"github.com/s3transfer/transferctl/internal/logging"
	"github.com/s3transfer/transferctl/internal/progress"
	"github.com/s3transfer/transferctl/internal/transfer"
)

func newTransferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Start and follow server-side bucket-to-bucket transfers",
	}
	cmd.AddCommand(newTransferStartCmd())
	cmd.AddCommand(newTransferStatusCmd())
	return cmd
}

func newTransferStartCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "start <source-bucket> <destination-bucket> <file-key>",
		Short: "Copy an object from one bucket to another",
		Long: `Submit a transfer job. The copy runs on the service; with --wait the job
is polled every two seconds until it completes or fails.

Examples:
  transferctl transfer start my-documents backup-files report.pdf
  transferctl transfer start my-documents backup-files report.pdf --wait`,
		Args:              cobra.ExactArgs(3),
		ValidArgsFunction: completeRecentBuckets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransferStart(cmd, args[0], args[1], args[2], wait)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the transfer finishes")
	return cmd
}

func runTransferStart(cmd *cobra.Command, src, dst, key string, wait bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(cmd.ErrOrStderr()); err != nil {
		return err
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	defer bus.Close()
	sess := a.newDashboard(dashboardOptions{bus: bus})
	defer sess.Close()

	var w *jobWatcher
	if wait {
		w = watchJob(cmd.ErrOrStderr(), bus, a.logger, transferLabel(src, dst, key))
	}

	sess.SetSourceBucket(src)
	sess.SetDestinationBucket(dst)
	sess.SelectFile(key)
	job, err := sess.StartTransfer(cmd.Context())
	if err != nil {
		if w != nil {
			w.stop(transfer.Job{State: transfer.StateError, Err: err.Error()})
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Transfer submitted: %s\n", job.ID)

	if !wait {
		return nil
	}
	return finishWatch(cmd.Context(), sess.Transfers(), w)
}

func newTransferStatusCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a transfer job",
		Long: `Print the current backend status of a transfer job. With --wait the job
is polled until it completes or fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransferStatus(cmd, args[0], wait)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the transfer finishes")
	return cmd
}

func runTransferStatus(cmd *cobra.Command, jobID string, wait bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(cmd.ErrOrStderr()); err != nil {
		return err
	}

	if !wait {
		status, err := a.client.TransferStatus(cmd.Context(), jobID)
		if err != nil {
			return fmt.Errorf("failed to get status of %s: %w", jobID, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	defer bus.Close()
	sess := a.newDashboard(dashboardOptions{bus: bus})
	defer sess.Close()

	w := watchJob(cmd.ErrOrStderr(), bus, a.logger, jobID)
	if _, err := sess.Transfers().Attach(cmd.Context(), jobID); err != nil {
		w.stop(transfer.Job{State: transfer.StateError, Err: err.Error()})
		return err
	}
	return finishWatch(cmd.Context(), sess.Transfers(), w)
}

func transferLabel(src, dst, key string) string {
	return fmt.Sprintf("%s/%s -> %s", src, key, dst)
}

// jobWatcher renders polled statuses of one job on a JobUI line.
type jobWatcher struct {
	bus    *events.EventBus
	logger *logging.Logger
	ch     <-chan events.Event
	ui     *progress.JobUI
	line   *progress.JobLine
	wg     sync.WaitGroup
}

func watchJob(out io.Writer, bus *events.EventBus, logger *logging.Logger, label string) *jobWatcher {
	isTerm := false
	if f, ok := out.(*os.File); ok {
		isTerm = progress.IsTerminal(f)
	}
	ui := progress.NewJobUI(out, isTerm)
	w := &jobWatcher{
		bus:    bus,
		logger: logger,
		ch:     bus.Subscribe(events.EventTransferPolled),
		ui:     ui,
		line:   ui.AddJob(label),
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for ev := range w.ch {
			polled, ok := ev.(*events.TransferPolledEvent)
			if !ok {
				continue
			}
			if polled.Error != "" {
				w.line.Update("retrying: " + polled.Error)
				continue
			}
			w.line.Update(polled.Status)
		}
	}()
	return w
}

// stop ends the subscription and the line with the job's final state.
func (w *jobWatcher) stop(job transfer.Job) {
	w.bus.Unsubscribe(events.EventTransferPolled, w.ch)
	w.wg.Wait()

	if dropped := w.bus.GetDroppedEventCount(); dropped > 0 {
		w.logger.Debug().Int64("dropped_events", dropped).Msg("status updates skipped while rendering")
	}

	switch job.State {
	case transfer.StateCompleted:
		w.line.Finish(constants.TransferStatusCompleted, true)
	case transfer.StateError:
		w.line.Finish(job.Err, false)
	default:
		w.line.Finish("stopped", false)
	}
	w.ui.Wait()
}

// finishWatch waits for the controller's job and reports its outcome.
func finishWatch(ctx context.Context, ctrl *transfer.Controller, w *jobWatcher) error {
	job, err := ctrl.Wait(ctx)
	w.stop(job)
	if err != nil {
		return fmt.Errorf("stopped waiting for transfer %s: %w", job.ID, err)
	}
	if job.State == transfer.StateError {
		return fmt.Errorf("transfer %s failed: %s", job.ID, job.Err)
	}
	return nil
}
