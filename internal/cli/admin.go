package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/s3transfer/transferctl/internal/api"
	"github.com/s3transfer/transferctl/internal/awscheck"
	"github.com/s3transfer/transferctl/internal/http"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	awsCmd := &cobra.Command{
		Use:   "aws",
		Short: "Manage the AWS credentials the service uses for bucket access",
	}
	awsCmd.AddCommand(newAdminAWSSaveCmd())
	awsCmd.AddCommand(newAdminAWSListCmd())
	cmd.AddCommand(awsCmd)

	return cmd
}

func newAdminAWSSaveCmd() *cobra.Command {
	var (
		account   string
		accessKey string
		secretKey string
		region    string
		verify    bool
		endpoint  string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Store an AWS key pair on the service",
		Long: `Store an AWS access key pair on the service. The secret key is prompted
for when --secret-key is not given.

With --verify the key pair is first checked locally by listing buckets
with the AWS SDK; nothing is sent to the service when that fails.

Examples:
  transferctl admin aws save --account prod --access-key AKIA... --region us-east-1
  transferctl admin aws save --account prod --access-key AKIA... --region us-east-1 --verify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireLogin(cmd.ErrOrStderr()); err != nil {
				return err
			}

			if secretKey == "" {
				secretKey, err = promptPassword(cmd.ErrOrStderr(), "AWS secret key: ")
				if err != nil {
					return fmt.Errorf("failed to read secret key: %w", err)
				}
			}

			cred := api.AWSCredential{
				AccountName: strings.TrimSpace(account),
				AccessKey:   strings.TrimSpace(accessKey),
				SecretKey:   strings.TrimSpace(secretKey),
				Region:      strings.TrimSpace(region),
			}

			if verify {
				httpClient, err := http.ConfigureHTTPClient(a.cfg)
				if err != nil {
					return fmt.Errorf("failed to configure HTTP client: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Verifying AWS credentials...")
				res, err := awscheck.Verify(cmd.Context(), cred, awscheck.Options{
					HTTPClient:  httpClient,
					Endpoint:    endpoint,
					MaxAttempts: awscheck.RetryAttempts(a.cfg.MaxRetries),
					Logger:      a.logger,
				})
				if err != nil {
					return fmt.Errorf("credential check failed: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ Credentials valid in %s (%d buckets visible)\n", res.Region, len(res.Buckets))
			}

			msg, err := a.client.SaveCredentials(cmd.Context(), cred)
			if err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account name (required)")
	cmd.Flags().StringVar(&accessKey, "access-key", "", "AWS access key ID (required)")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "AWS secret access key (prompted when omitted)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (required)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Check the key pair with ListBuckets before saving")
	cmd.Flags().StringVar(&endpoint, "s3-endpoint", "", "S3 endpoint for --verify (S3-compatible stores)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("access-key")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}

func newAdminAWSListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored AWS accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireLogin(cmd.ErrOrStderr()); err != nil {
				return err
			}

			creds, err := a.client.ListCredentials(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list credentials: %w", err)
			}
			printCredentials(cmd, creds)
			return nil
		},
	}
}

func printCredentials(cmd *cobra.Command, creds []api.StoredCredential) {
	if len(creds) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No AWS credentials stored")
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACCOUNT\tREGION")
	for _, c := range creds {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.AccountName, c.Region)
	}
	w.Flush()
}
