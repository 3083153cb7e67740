package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"tcg-market-pipeline/storage"
)

// NewUploadRawCmd uploads the raw layer, or one partition of it, to S3.
func NewUploadRawCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "upload-raw",
		Short: "Copy raw API documents to S3 keeping the lake layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if rt.cfg.S3Bucket == "" {
				return fmt.Errorf("S3_BUCKET is not set")
			}
			up, err := storage.NewS3Uploader(cmd.Context(), rt.cfg.S3Bucket, rt.cfg.S3Prefix)
			if err != nil {
				return err
			}

			n, err := up.UploadTree(cmd.Context(), rt.lake.Paths.Root, filepath.Join("raw", dir))
			rt.logger.Info("[s3] %d objects uploaded to s3://%s/%s", n, rt.cfg.S3Bucket, rt.cfg.S3Prefix)
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "subdirectory of raw/ to upload, e.g. ebay/listings/price_date=2024-05-06")
	return cmd
}
