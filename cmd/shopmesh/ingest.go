package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	ingestFile         string
	ingestBatch        int
	ingestSkipExisting bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the catalog JSONL file into the configured vector store",
	Long: `Embed catalog records and upsert them into the vector store.

Each line is one product with the fields id, embedding_text, product_name,
brand, category_path, product_url, image, retail_price, discounted_price,
product_rating, overall_rating and is_FK_Advantage_product. NaN values are
treated as missing.

Examples:
  shopmesh ingest --file data/products.jsonl
  shopmesh ingest --file data/products.jsonl --skip-existing`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "Catalog JSONL file (default: ingest.file)")
	ingestCmd.Flags().IntVar(&ingestBatch, "batch", 0, "Documents per embedding batch (default: ingest.batch_size)")
	ingestCmd.Flags().BoolVar(&ingestSkipExisting, "skip-existing", false, "Do nothing when the store already holds documents")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if ingestFile == "" {
		ingestFile = cfg.Ingest.File
	}
	if ingestFile == "" {
		return fmt.Errorf("no catalog file: pass --file or set ingest.file")
	}
	if ingestBatch <= 0 {
		ingestBatch = cfg.Ingest.BatchSize
	}
	if cfg.VectorStore.Backend == "memory" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: vector_store.backend is memory; the ingested catalog only lives for this process.")
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.ingestFile(cmd.Context(), ingestFile, ingestBatch, ingestSkipExisting || cfg.Ingest.SkipExisting)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if stats.Skipped {
		fmt.Fprintf(out, "Store already holds %d documents, nothing to do.\n", stats.Existing)
		return nil
	}
	fmt.Fprintf(out, "Indexed %d of %d records in %d batches (%d invalid) in %s.\n",
		stats.Indexed, stats.Read, stats.Batches, stats.Invalid, stats.Duration.Round(time.Millisecond))
	return nil
}
