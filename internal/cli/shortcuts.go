package cli

import (
	"github.com/spf13/cobra"
)

// AddShortcuts adds shortcut commands to the root command.
// Shortcuts provide convenient aliases for commonly-used operations.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newUploadShortcut())
	rootCmd.AddCommand(newDownloadShortcut())
	rootCmd.AddCommand(newLsShortcut())
}

// newUploadShortcut creates the 'upload' shortcut command.
// Shortcut for: files upload
func newUploadShortcut() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "upload <bucket> <file>",
		Short: "Upload a file (shortcut for 'files upload')",
		Long: `Shortcut for uploading a file to a bucket.

Equivalent to: transferctl files upload <bucket> <file>

Examples:
  transferctl upload my-documents report.pdf
  transferctl upload my-documents report.pdf --key reports/q3.pdf`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeRecentBuckets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilesUpload(cmd, args[0], args[1], key)
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "", "Object key (default: file name)")

	return cmd
}

// newDownloadShortcut creates the 'download' shortcut command.
// Shortcut for: files download
func newDownloadShortcut() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "download <bucket> <key>",
		Short: "Download a file (shortcut for 'files download')",
		Long: `Shortcut for downloading an object from a bucket.

Equivalent to: transferctl files download <bucket> <key>

Examples:
  transferctl download my-documents reports/q3.pdf
  transferctl download my-documents reports/q3.pdf --outdir ./downloads`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeRecentBuckets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilesDownload(cmd, args[0], args[1], outputDir)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "outdir", "o", "", "Output directory (default: current directory)")

	return cmd
}

// newLsShortcut creates the 'ls' shortcut command.
// Shortcut for: files list
func newLsShortcut() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <bucket>",
		Short: "List bucket files (shortcut for 'files list')",
		Long: `Shortcut for listing the object keys of a bucket.

Equivalent to: transferctl files list <bucket>`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeRecentBuckets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilesList(cmd, args[0])
		},
	}
}
