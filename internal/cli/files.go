package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s3transfer/transferctl/internal/pathutil"
	"github.com/s3transfer/transferctl/internal/progress"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List, upload and download bucket files",
	}
	cmd.AddCommand(newFilesListCmd())
	cmd.AddCommand(newFilesUploadCmd())
	cmd.AddCommand(newFilesDownloadCmd())
	return cmd
}

func newFilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "list <bucket>",
		Short:             "List the object keys of a bucket",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeRecentBuckets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilesList(cmd, args[0])
		},
	}
}

func runFilesList(cmd *cobra.Command, bucket string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(cmd.ErrOrStderr()); err != nil {
		return err
	}

	sess := a.newDashboard(dashboardOptions{})
	defer sess.Close()

	sess.SetSourceBucket(bucket)
	if err := sess.LoadFiles(cmd.Context()); err != nil {
		return err
	}
	for _, key := range sess.Snapshot().Files {
		fmt.Fprintln(cmd.OutOrStdout(), key)
	}
	return nil
}

func newFilesUploadCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "upload <bucket> <file>",
		Short: "Upload a local file to a bucket",
		Long: `Upload a local file to a bucket. The object key defaults to the file name.

The service reports no upload progress; the bar shows an estimate that
stops at 90% until the upload finishes.

Examples:
  transferctl files upload my-documents report.pdf
  transferctl files upload my-documents report.pdf --key reports/2026/q3.pdf`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeRecentBuckets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilesUpload(cmd, args[0], args[1], key)
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "Object key (default: file name)")
	return cmd
}

func runFilesUpload(cmd *cobra.Command, bucket, path, key string) error {
	path, err := pathutil.Resolve(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(cmd.ErrOrStderr()); err != nil {
		return err
	}

	var bar *progress.EstimateBar
	sess := a.newDashboard(dashboardOptions{
		onUploadEstimate: func(percent int) {
			if bar != nil {
				bar.Set(percent)
			}
		},
	})
	defer sess.Close()

	sess.SetSourceBucket(bucket)
	staged, err := sess.StageFileAs(path, key)
	if err != nil {
		return err
	}

	bar = progress.NewEstimateBar(cmd.ErrOrStderr(), staged.Name)
	if err := sess.Upload(cmd.Context()); err != nil {
		bar.Abort()
		return err
	}

	target := staged.Key
	if target == "" {
		target = staged.Name
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s/%s\n", staged.Name, bucket, target)
	return nil
}

func newFilesDownloadCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "download <bucket> <key>",
		Short: "Download an object into a local directory",
		Long: `Download an object. The local file is named after the last segment of
the key and is only created once the download succeeded.

Examples:
  transferctl files download my-documents reports/q3.pdf
  transferctl files download my-documents reports/q3.pdf --outdir ~/Downloads`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeRecentBuckets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilesDownload(cmd, args[0], args[1], outDir)
		},
	}
	cmd.Flags().StringVarP(&outDir, "outdir", "o", "", "Output directory (default: current directory)")
	return cmd
}

func runFilesDownload(cmd *cobra.Command, bucket, key, outDir string) error {
	outDir, err := pathutil.Resolve(outDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		return fmt.Errorf("output directory %s does not exist", outDir)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireLogin(cmd.ErrOrStderr()); err != nil {
		return err
	}

	sess := a.newDashboard(dashboardOptions{})
	defer sess.Close()

	sess.SetSourceBucket(bucket)
	sess.SelectFile(key)
	path, err := sess.Download(cmd.Context(), outDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s\n", path)
	return nil
}
