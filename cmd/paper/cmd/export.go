package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/app"
	"github.com/atharvakonge/paper-brokerage/internal/archive"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the equity history or the trade log as CSV",
	Long: `Write the equity history or the trade log as CSV to stdout, a file,
or the configured S3 bucket.

Examples:
  paper export --kind equity
  paper export --kind trades --out trades.csv
  paper export --kind trades --s3`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	exportKind string
	exportOut  string
	exportS3   bool
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportKind, "kind", "k", "equity", "what to export (equity or trades)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().BoolVar(&exportS3, "s3", false, "upload to archive.bucket instead")
	exportCmd.MarkFlagsMutuallyExclusive("out", "s3")
}

func runExport(cmd *cobra.Command, args []string) error {
	kind, err := archive.ParseKind(exportKind)
	if err != nil {
		return err
	}

	return withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		if exportS3 {
			if deps.Archive == nil {
				return fmt.Errorf("archive.bucket is not configured")
			}
			key, rows, err := deps.Archive.ExportToS3(ctx, deps.Engine, kind, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Uploaded %d %s rows to %s\n", rows, kind, key)
			return nil
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportOut, err)
			}
			defer f.Close()
			w = f
		}

		rows, err := archive.Export(ctx, deps.Engine, kind, w)
		if err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %d %s rows to %s\n", rows, kind, exportOut)
		}
		return nil
	})
}
