package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newBucketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buckets",
		Short: "Recently used bucket names",
		Long: `The client remembers the five bucket names used most recently.
Bucket names are never listed by the service; these are offered as
suggestions in the dashboard and shell completion.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "recent",
		Short: "List recently used buckets, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			for _, name := range a.recent.List() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use <bucket>",
		Short: "Move a bucket to the front of the recent list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("bucket name is empty")
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			return a.recent.Record(name)
		},
	})

	return cmd
}

// completeRecentBuckets offers remembered bucket names for positional
// bucket arguments.
func completeRecentBuckets(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	a, err := newApp()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, name := range a.recent.List() {
		if strings.HasPrefix(name, toComplete) {
			out = append(out, name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
