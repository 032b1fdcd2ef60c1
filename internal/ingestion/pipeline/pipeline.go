package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdfpilot/pdfpilot-backend/internal/clients/blobstore"
	"github.com/pdfpilot/pdfpilot-backend/internal/clients/openai"
	"github.com/pdfpilot/pdfpilot-backend/internal/clients/pinecone"
	"github.com/pdfpilot/pdfpilot-backend/internal/ingestion/extractor"
	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/pkg/ctxutil"
	"github.com/pdfpilot/pdfpilot-backend/internal/repos"
	"github.com/pdfpilot/pdfpilot-backend/internal/types"
)

const (
	upsertBatchSize   = 100
	upsertConcurrency = 4
)

// Pipeline ingests one uploaded file into the vector index: fetch the
// blob, extract per-page text, embed, upsert under the file's namespace.
// It owns the file's upload status for the whole run.
type Pipeline interface {
	// Ingest runs the full ingestion for file and records the terminal
	// status. The returned error is for the out-of-band caller's log
	// only; nothing user-facing hangs on it.
	Ingest(ctx context.Context, file *types.File) error
}

type pipeline struct {
	log      *logger.Logger
	fileRepo repos.FileRepo
	fetcher  blobstore.Fetcher
	extract  extractor.PageExtractor
	ai       openai.Client
	store    pinecone.VectorStore
}

func New(
	baseLog *logger.Logger,
	fileRepo repos.FileRepo,
	fetcher blobstore.Fetcher,
	extract extractor.PageExtractor,
	ai openai.Client,
	store pinecone.VectorStore,
) Pipeline {
	return &pipeline{
		log:      baseLog.With("component", "IngestionPipeline"),
		fileRepo: fileRepo,
		fetcher:  fetcher,
		extract:  extract,
		ai:       ai,
		store:    store,
	}
}

func (p *pipeline) Ingest(ctx context.Context, file *types.File) error {
	ctx = ctxutil.Default(ctx)

	if file == nil || file.ID == uuid.Nil || file.URL == "" {
		return fmt.Errorf("invalid file")
	}

	log := p.log.With("file_id", file.ID)

	if err := p.fileRepo.UpdateUploadStatus(ctx, nil, file.ID, types.UploadStatusProcessing); err != nil {
		log.Error("Failed to mark file processing", "error", err)
		return err
	}

	if err := p.run(ctx, log, file); err != nil {
		log.Error("Ingestion failed", "error", err)
		if serr := p.fileRepo.UpdateUploadStatus(ctx, nil, file.ID, types.UploadStatusFailed); serr != nil {
			log.Error("Failed to mark file failed", "error", serr)
		}
		return err
	}

	if err := p.fileRepo.UpdateUploadStatus(ctx, nil, file.ID, types.UploadStatusSuccess); err != nil {
		log.Error("Failed to mark file success", "error", err)
		return err
	}
	return nil
}

func (p *pipeline) run(ctx context.Context, log *logger.Logger, file *types.File) error {
	raw, err := p.fetcher.Fetch(ctx, file.URL)
	if err != nil {
		return fmt.Errorf("blob fetch: %w", err)
	}

	pages, totalPages, err := p.extract(raw)
	if err != nil {
		return fmt.Errorf("pdf extraction: %w", err)
	}

	if err := p.fileRepo.SetPageCount(ctx, nil, file.ID, totalPages); err != nil {
		return fmt.Errorf("set page count: %w", err)
	}

	log.Info("Extracted pages", "total_pages", totalPages, "text_pages", len(pages))
	if len(pages) == 0 {
		return nil
	}

	texts := make([]string, len(pages))
	for i, page := range pages {
		texts[i] = page.Text
	}
	embeddings, err := p.ai.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed pages: %w", err)
	}
	if len(embeddings) != len(pages) {
		return fmt.Errorf("embed pages: got %d embeddings for %d pages", len(embeddings), len(pages))
	}

	// Vector keys are derived from the file id and page number, so
	// re-running ingestion for the same file overwrites instead of
	// duplicating.
	vectors := make([]pinecone.Vector, len(pages))
	for i, page := range pages {
		vectors[i] = pinecone.Vector{
			ID:     fmt.Sprintf("%s-page-%d", file.ID, page.Number),
			Values: embeddings[i],
			Metadata: map[string]any{
				"text": page.Text,
				"page": page.Number,
			},
		}
	}

	namespace := file.ID.String()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertConcurrency)
	for start := 0; start < len(vectors); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		batch := vectors[start:end]
		g.Go(func() error {
			return p.store.Upsert(gctx, namespace, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("vector upsert: %w", err)
	}
	return nil
}
