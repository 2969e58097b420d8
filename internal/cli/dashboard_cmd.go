package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/s3transfer/transferctl/internal/dashboard"
	"github.com/s3transfer/transferctl/internal/notify"
	"github.com/s3transfer/transferctl/internal/pathutil"
	"github.com/s3transfer/transferctl/internal/transfer"
)

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Interactive session: pick buckets, upload, download and transfer",
		Long: `Start an interactive session. Type 'help' for the list of commands.

A typical flow:
  source my-documents     select and list the source bucket
  select 1                pick the first listed file
  dest backup-files       select the destination bucket
  transfer                copy the file; completion is announced`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireLogin(cmd.ErrOrStderr()); err != nil {
				return err
			}

			out := &syncWriter{w: cmd.OutOrStdout()}
			sess := a.newDashboard(dashboardOptions{
				extraSinks: []notify.Sink{&printSink{out: out}},
				noConsole:  true,
			})
			defer sess.Close()

			return runDashboard(cmd.Context(), cmd.InOrStdin(), out, sess, a.recent.List)
		},
	}
}

// syncWriter serializes writes from the prompt loop and notification timers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// printSink shows notifications inline in the interactive session.
type printSink struct {
	out io.Writer
}

func (p *printSink) Show(m notify.Message) {
	fmt.Fprintf(p.out, "[%s] %s\n", m.Severity, m.Text)
}

func (p *printSink) Hide() {}

const dashboardHelp = `Commands:
  source <bucket>       select and list the source bucket
  dest <bucket>         select the destination bucket
  recent                show recently used buckets
  load                  reload the source bucket listing
  files                 show the loaded files
  select <key|number>   choose the file to download or transfer
  stage <path> [key]    choose a local file to upload
  upload                upload the staged file to the source bucket
  download [dir]        download the selected file (default: current dir)
  transfer              copy the selected file to the destination bucket
  status                show the current transfer
  steps                 show the quick-start checklist
  help                  show this help
  quit                  leave the session`

// runDashboard reads commands from in until quit or EOF. Command failures
// are reported and the loop continues.
func runDashboard(ctx context.Context, in io.Reader, out io.Writer, sess *dashboard.Session, recentBuckets func() []string) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "transferctl dashboard. Type 'help' for commands.")

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := strings.ToLower(fields[0]), fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := dispatchDashboard(ctx, out, sess, recentBuckets, cmd, args); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func dispatchDashboard(ctx context.Context, out io.Writer, sess *dashboard.Session, recentBuckets func() []string, cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		fmt.Fprintln(out, dashboardHelp)

	case "source", "src":
		if len(args) != 1 {
			return fmt.Errorf("usage: source <bucket>")
		}
		sess.SetSourceBucket(args[0])
		if err := sess.LoadFiles(ctx); err != nil {
			return err
		}
		printFiles(out, sess.Snapshot())

	case "dest", "destination":
		if len(args) != 1 {
			return fmt.Errorf("usage: dest <bucket>")
		}
		sess.SetDestinationBucket(args[0])
		fmt.Fprintf(out, "Destination bucket: %s\n", args[0])

	case "recent":
		for _, name := range recentBuckets() {
			fmt.Fprintln(out, name)
		}

	case "load":
		if err := sess.LoadFiles(ctx); err != nil {
			return err
		}
		printFiles(out, sess.Snapshot())

	case "files", "ls":
		printFiles(out, sess.Snapshot())

	case "select":
		if len(args) != 1 {
			return fmt.Errorf("usage: select <key|number>")
		}
		key := resolveSelection(sess.Snapshot().Files, args[0])
		sess.SelectFile(key)
		fmt.Fprintf(out, "Selected: %s\n", key)

	case "stage":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: stage <path> [key]")
		}
		key := ""
		if len(args) == 2 {
			key = args[1]
		}
		path, err := pathutil.Resolve(args[0])
		if err != nil {
			return err
		}
		_, err = sess.StageFileAs(path, key)
		return err

	case "upload":
		return sess.Upload(ctx)

	case "download":
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}
		dir, err := pathutil.Resolve(dir)
		if err != nil {
			return err
		}
		path, err := sess.Download(ctx, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved to %s\n", path)

	case "transfer":
		job, err := sess.StartTransfer(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Transfer %s submitted\n", job.ID)

	case "status":
		printTransfer(out, sess.Snapshot())

	case "steps":
		for _, step := range sess.Steps() {
			mark := " "
			if step.Done {
				mark = "x"
			}
			fmt.Fprintf(out, "[%s] %s\n", mark, step.Label)
		}

	default:
		return fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
	return nil
}

// resolveSelection maps a 1-based listing number to its key. Anything else
// is taken as a key.
func resolveSelection(files []string, arg string) string {
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(files) {
		return files[n-1]
	}
	return arg
}

func printFiles(out io.Writer, snap dashboard.Snapshot) {
	if snap.FilesBucket == "" {
		fmt.Fprintln(out, "No files loaded")
		return
	}
	fmt.Fprintf(out, "Files in %s:\n", snap.FilesBucket)
	for i, key := range snap.Files {
		mark := " "
		if key == snap.SelectedFile {
			mark = "*"
		}
		fmt.Fprintf(out, "%s%3d  %s\n", mark, i+1, key)
	}
}

func printTransfer(out io.Writer, snap dashboard.Snapshot) {
	if !snap.HasTransfer {
		fmt.Fprintln(out, "No transfer started")
		return
	}
	job := snap.Transfer
	fmt.Fprintf(out, "%s: %s\n", transferLabel(job.SourceBucket, job.DestinationBucket, job.FileKey), job.State)
	if job.ID != "" {
		fmt.Fprintf(out, "  Job ID:      %s\n", job.ID)
	}
	if job.LastStatus != "" {
		fmt.Fprintf(out, "  Last status: %s\n", job.LastStatus)
	}
	if job.State == transfer.StateError && job.Err != "" {
		fmt.Fprintf(out, "  Error:       %s\n", job.Err)
	}
	if job.State.IsTerminal() {
		fmt.Fprintf(out, "  Duration:    %s\n", job.Duration().Round(time.Millisecond))
	}
}
