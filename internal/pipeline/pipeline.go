package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/repovec/internal/chunker"
	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/fyrsmithlabs/repovec/internal/embeddings"
	"github.com/fyrsmithlabs/repovec/internal/filter"
	"github.com/fyrsmithlabs/repovec/internal/logging"
	"github.com/fyrsmithlabs/repovec/internal/metrics"
	"github.com/fyrsmithlabs/repovec/internal/progress"
	"github.com/fyrsmithlabs/repovec/internal/secrets"
	"github.com/fyrsmithlabs/repovec/internal/source"
	"github.com/fyrsmithlabs/repovec/internal/summary"
	"github.com/fyrsmithlabs/repovec/internal/tokenizer"
	"github.com/fyrsmithlabs/repovec/internal/vectorstore"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/repovec/internal/pipeline")

// TokenCounter counts tokens of a whole file.
type TokenCounter interface {
	Count(text string) int
}

// Deps overrides the components New would otherwise build from config.
// Nil fields are built from config.
type Deps struct {
	Acquirer source.Acquirer
	Scanner  secrets.Scanner
	Counter  TokenCounter
	// Loader is used instead of building embeddings and a vector store.
	Loader   vectorstore.Loader
	Metrics  *metrics.Metrics
	Progress progress.Reporter
	Logger   *logging.Logger
}

// Pipeline holds the components of an ingestion run.
type Pipeline struct {
	cfg        *config.Config
	acquirer   source.Acquirer
	filter     *filter.Filter
	scanner    secrets.Scanner
	remediator secrets.Remediator
	counter    TokenCounter
	chunker    *chunker.Chunker
	loader     vectorstore.Loader
	metrics    *metrics.Metrics
	progress   progress.Reporter
	log        *logging.Logger
}

// New validates cfg and assembles a pipeline. Embeddings and the vector
// store are built lazily by Run so dry runs need no credentials.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	p := &Pipeline{
		cfg:      cfg,
		acquirer: deps.Acquirer,
		scanner:  deps.Scanner,
		counter:  deps.Counter,
		loader:   deps.Loader,
		metrics:  deps.Metrics,
		progress: deps.Progress,
		log:      deps.Logger,
	}
	if p.log == nil {
		p.log = logging.NewNop()
	}
	p.log = p.log.Named("pipeline")
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	if p.progress == nil {
		p.progress = progress.Nop
	}

	var err error
	if p.acquirer == nil {
		if p.acquirer, err = source.New(cfg.Source, p.log); err != nil {
			return nil, err
		}
	}
	if p.filter, err = filter.FromConfig(cfg.Filter); err != nil {
		return nil, err
	}

	if p.scanner == nil && cfg.Secrets.Enabled {
		if p.scanner, err = secrets.New(cfg.Secrets); err != nil {
			return nil, err
		}
	}
	action, err := secrets.ParseAction(cfg.Secrets.Action)
	if err != nil {
		return nil, err
	}
	p.remediator = secrets.Remediator{Action: action, QuarantineDir: cfg.Secrets.QuarantineDir}

	if p.counter == nil {
		if p.counter, err = tokenizer.ForEncoding(cfg.Chunk.Encoding); err != nil {
			return nil, err
		}
	}
	if p.chunker, err = chunker.New(cfg.Chunk); err != nil {
		return nil, err
	}
	return p, nil
}

// Run acquires the tree and ingests it.
func (p *Pipeline) Run(ctx context.Context, opts Options) (res *Result, err error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = logging.WithRun(ctx, logging.Run{ID: runID, Mode: p.cfg.Source.Mode})
	ctx, span := tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("source.mode", p.cfg.Source.Mode),
	))
	defer func() {
		endSpan(span, err)
		if err != nil {
			p.log.Error(ctx, "run failed", zap.Error(err))
		}
	}()
	totalDone := p.metrics.Stage(metrics.StageTotal)

	p.log.Info(ctx, "starting run", zap.String("mode", p.cfg.Source.Mode))

	var tree *source.Tree
	err = p.stage(ctx, metrics.StageAcquire, func(ctx context.Context) error {
		var aerr error
		tree, aerr = p.acquirer.Acquire(ctx)
		return aerr
	})
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}

	rec := summary.NewRecorder()
	var entries []Entry
	err = p.stage(ctx, metrics.StageScan, func(ctx context.Context) error {
		var cerr error
		p.remediator.Root = tree.Root
		entries, res, cerr = p.Collect(ctx, tree.Root, rec, opts)
		return cerr
	})
	if err != nil {
		return nil, err
	}
	res.RunID = runID
	res.Tree = tree

	res.SummaryPath = opts.SummaryPath
	if res.SummaryPath == "" {
		res.SummaryPath = p.cfg.Summary.Path
	}
	if err := rec.WriteCSV(res.SummaryPath); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}
	p.log.Info(ctx, "wrote corpus summary",
		zap.String("path", res.SummaryPath),
		zap.Int("files", rec.Len()),
		zap.Int("total_tokens", rec.Total()),
	)

	if opts.SkipLoad {
		p.log.Info(ctx, "skipping vector store load")
	} else {
		var chunks []chunker.Chunk
		err = p.stage(ctx, metrics.StageChunk, func(context.Context) error {
			var serr error
			chunks, serr = p.chunker.SplitAll(documents(entries))
			return serr
		})
		if err != nil {
			return nil, fmt.Errorf("chunk: %w", err)
		}
		res.Chunks = len(chunks)

		err = p.stage(ctx, metrics.StageLoad, func(ctx context.Context) error {
			return p.load(ctx, chunks)
		})
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		p.metrics.AddChunks(len(chunks))
		res.Loaded = true
	}

	totalDone()
	res.FinishedAt = time.Now()
	res.Duration = res.FinishedAt.Sub(start)
	p.metrics.Finish(res.FinishedAt)
	p.writeMetrics(ctx)

	p.log.Info(ctx, "run complete",
		zap.Int("files", res.Files),
		zap.Int("indexed", len(res.Entries)),
		zap.Int("secrets", len(res.Secrets)),
		zap.Int("tokens", res.Tokens),
		zap.Int("chunks", res.Chunks),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// load sends chunks to the configured loader, building embeddings and the
// vector store when none was injected.
func (p *Pipeline) load(ctx context.Context, chunks []chunker.Chunk) error {
	if p.loader != nil {
		return p.loader.Load(ctx, chunks)
	}

	provider, err := embeddings.New(p.cfg.Embeddings)
	if err != nil {
		return err
	}
	defer provider.Close()
	p.checkDimension(ctx, provider)

	loader, err := vectorstore.New(p.cfg, provider, p.log)
	if err != nil {
		return err
	}
	defer loader.Close()

	return loader.Load(ctx, chunks)
}

// checkDimension warns when the qdrant collection size disagrees with
// the embedding model.
func (p *Pipeline) checkDimension(ctx context.Context, provider embeddings.Provider) {
	if p.cfg.VectorStore.Provider != vectorstore.ProviderQdrant {
		return
	}
	if dim := provider.Dimension(); dim > 0 && dim != p.cfg.Qdrant.VectorSize {
		p.log.Warn(ctx, "qdrant vector size does not match embedding model",
			zap.Int("vector_size", p.cfg.Qdrant.VectorSize),
			zap.Int("model_dimension", dim),
			zap.String("model", p.cfg.Embeddings.Model),
		)
	}
}

func (p *Pipeline) writeMetrics(ctx context.Context) {
	path := p.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := p.metrics.WriteTextfile(path); err != nil {
		p.log.Warn(ctx, "failed to write metrics textfile", zap.String("path", path), zap.Error(err))
	}
}

// stage runs fn inside a span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "pipeline."+name)
	done := p.metrics.Stage(name)
	err := fn(ctx)
	done()
	endSpan(span, err)
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func documents(entries []Entry) []chunker.Document {
	docs := make([]chunker.Document, len(entries))
	for i, e := range entries {
		docs[i] = chunker.Document{ID: e.Path, Text: e.Text}
	}
	return docs
}

// Check runs filtering and scanning over a local tree without acquiring,
// writing or loading anything. Files with findings are only reported.
func (p *Pipeline) Check(ctx context.Context, root string, visit func(FileResult)) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	ctx = logging.WithRun(ctx, logging.Run{ID: uuid.NewString(), Mode: "check"})
	p.remediator.Root = root
	p.remediator.Action = secrets.ActionReport

	_, res, err := p.Collect(ctx, root, summary.NewRecorder(), Options{Visit: visit})
	return res, err
}
