package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gwi.com/support-chatbot/internal/domain"
)

func (c *cli) newIngestCmd() *cobra.Command {
	var (
		id       domain.Identity
		path     string
		fileType string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a local file into a tenant's knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id.TenantID <= 0 {
				return fmt.Errorf("--tenant must be a positive id")
			}
			comps, err := openComponents(cmd.Context(), c.cfg, false)
			if err != nil {
				return err
			}
			defer comps.Close()

			doc, err := comps.documents.IngestFile(cmd.Context(), id, path, fileType)
			if err != nil {
				return fmt.Errorf("ingestion failed: %s", domain.Describe(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s as document %d (%d chunks) for tenant %d\n", doc.Filename, doc.ID, doc.ChunkCount, doc.TenantID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id.TenantID, "tenant", 0, "tenant id that owns the document")
	cmd.Flags().Int64Var(&id.UserID, "user", 0, "id of the uploading user")
	cmd.Flags().StringVar(&path, "file", "", "path of the file to ingest")
	cmd.Flags().StringVar(&fileType, "type", "", "file type; defaults to the file extension")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
