package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/flowguard/internal/store"
)

func newExportCmd() *cobra.Command {
	var (
		configPath string
		toStdout   bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored collection snapshot to S3",
		Long:  "Uploads the raw collection payload for the configured environment to export.bucket. --stdout prints it instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			payload, err := a.store.Payload(ctx)
			if err != nil {
				return err
			}
			if toStdout {
				if len(payload) == 0 {
					payload = []byte("[]")
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(payload))
				return nil
			}

			exporter, err := store.NewS3Exporter(ctx, a.cfg.Export)
			if err != nil {
				return err
			}
			key, err := exporter.Export(ctx, a.cfg.Environment, payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to s3://%s/%s\n", a.store.Key(), a.cfg.Export.Bucket, key)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "print the payload instead of uploading")
	return cmd
}
