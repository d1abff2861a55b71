// Package ingest loads the prepared catalog JSONL file into a vector store:
// records are cleaned, embedded in batches and upserted.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/core"
	"github.com/hupe1980/shopmesh/logging"
)

// Counter is implemented by vector stores able to report their size.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Options configure an Ingestor.
type Options struct {
	BatchSize int
	// SkipExisting turns ingestion into a no-op when the store already
	// holds documents.
	SkipExisting bool
	Logger       logging.Logger
	// OnBatch is called after each stored batch with the running total.
	OnBatch func(indexed int)
}

// Stats summarize one ingestion run.
type Stats struct {
	Read     int
	Indexed  int
	Invalid  int
	Batches  int
	Existing int
	Skipped  bool
	Duration time.Duration
}

// Ingestor embeds and stores catalog documents.
type Ingestor struct {
	embedder core.Embedder
	writer   core.VectorWriter
	opts     Options
}

// New creates an Ingestor.
func New(embedder core.Embedder, writer core.VectorWriter, optFns ...func(o *Options)) *Ingestor {
	opts := Options{BatchSize: 64}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	opts.Logger = logging.ForComponent(opts.Logger, "ingest")
	return &Ingestor{embedder: embedder, writer: writer, opts: opts}
}

// IngestFile ingests the JSONL file at path.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return in.Ingest(ctx, f)
}

// Ingest reads records from r and stores them batch by batch. Malformed
// lines and records without a title are counted and skipped.
func (in *Ingestor) Ingest(ctx context.Context, r io.Reader) (Stats, error) {
	start := time.Now()
	var stats Stats

	if in.opts.SkipExisting {
		if c, ok := in.writer.(Counter); ok {
			n, err := c.Count(ctx)
			if err != nil {
				return stats, fmt.Errorf("count existing documents: %w", err)
			}
			if n > 0 {
				stats.Existing, stats.Skipped = n, true
				in.opts.Logger.Info("ingest.run.skipped", "existing", n)
				return stats, nil
			}
		} else {
			in.opts.Logger.Warn("ingest.skip_existing.unsupported")
		}
	}

	if err := in.writer.Init(ctx, in.embedder.Dimension()); err != nil {
		return stats, fmt.Errorf("init vector store: %w", err)
	}

	batch := make([]core.Document, 0, in.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := in.store(ctx, batch); err != nil {
			return err
		}
		stats.Indexed += len(batch)
		stats.Batches++
		if in.opts.OnBatch != nil {
			in.opts.OnBatch(stats.Indexed)
		}
		batch = batch[:0]
		return nil
	}

	rd := NewReader(r)
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var lineErr *LineError
		if errors.As(err, &lineErr) {
			stats.Invalid++
			in.opts.Logger.Warn("ingest.record.invalid", "line", lineErr.Line, "error", lineErr.Err.Error())
			continue
		}
		if err != nil {
			return stats, err
		}
		stats.Read++

		doc, ok := prepare(rec)
		if !ok {
			stats.Invalid++
			continue
		}
		batch = append(batch, doc)
		if len(batch) == in.opts.BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	in.opts.Logger.Info("ingest.run.success", "read", stats.Read, "indexed", stats.Indexed,
		"invalid", stats.Invalid, "batches", stats.Batches, "duration", stats.Duration)
	return stats, nil
}

func (in *Ingestor) store(ctx context.Context, docs []core.Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vecs, err := in.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("embed batch: got %d vectors for %d documents", len(vecs), len(docs))
	}
	if err := in.writer.Upsert(ctx, docs, vecs); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}
	return nil
}

// prepare converts a record into a document. Records without an ID get a
// stable one derived from their URL or title.
func prepare(rec catalog.Record) (core.Document, bool) {
	doc := rec.Document()
	title, _ := doc.Metadata[catalog.KeyTitle].(string)
	if title == "" || doc.Text == "" {
		return core.Document{}, false
	}
	if doc.ID == "" {
		seed, _ := doc.Metadata[catalog.KeyURL].(string)
		if seed == "" {
			seed = title
		}
		doc.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
	}
	return doc, true
}
