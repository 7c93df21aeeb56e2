// Package pipeline runs one batch: load, aggregate and rank, assemble, then
// deliver the artifact and record the run.
package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"salesanalytics/internal/aggregate"
	"salesanalytics/internal/archive"
	"salesanalytics/internal/export"
	"salesanalytics/internal/insights"
	"salesanalytics/internal/loader"
	"salesanalytics/internal/manifest"
	"salesanalytics/internal/metrics"
	"salesanalytics/internal/model"
	"salesanalytics/internal/rank"
	"salesanalytics/internal/report"
	"salesanalytics/internal/sink"
)

const (
	// ArtifactName is the default name of the main artifact.
	ArtifactName = "analytics.json"
	tracerName   = "salesanalytics/pipeline"
)

type Options struct {
	Policy        model.RevenuePolicy
	TopN          int
	Loader        loader.Options
	RequireOrders bool
	// ArtifactName overrides the main artifact name.
	ArtifactName string
	// ArtifactPath is recorded in the manifest.
	ArtifactPath string
}

// DefaultOptions matches the documented defaults.
var DefaultOptions = Options{
	Policy: model.DefaultPolicy,
	TopN:   rank.DefaultLimit,
	Loader: loader.DefaultOptions,
}

// Pipeline wires a source to its sinks. Only Source and Sink are required.
type Pipeline struct {
	Source   loader.Source
	Sink     sink.Writer
	Extras   sink.Writer
	Manifest manifest.Publisher
	Archive  archive.Store
	Metrics  *metrics.Registry
	Tracer   trace.Tracer
	Options  Options
	// Now is the clock. Split for testability.
	Now func() time.Time
	// NewRunID returns the run identifier.
	NewRunID func() string
}

type Result struct {
	RunID    string
	Report   report.Report
	Artifact []byte
	Digest   string
	Load     loader.Result
	Insights insights.Insights
}

func (p *Pipeline) tracer() trace.Tracer {
	if p.Tracer != nil {
		return p.Tracer
	}
	return otel.Tracer(tracerName)
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// stage runs fn inside a span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context, span trace.Span) error) error {
	ctx, span := p.tracer().Start(ctx, name)
	defer span.End()
	t0 := time.Now()
	err := fn(ctx, span)
	if p.Metrics != nil {
		p.Metrics.StageSec.WithLabelValues(name).Observe(time.Since(t0).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Stage(err))
	}
	return err
}

// Run executes one batch. Nothing is written unless the artifact passed
// schema validation, and the manifest and archive are only updated after
// every sink succeeded.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res, err := p.run(ctx)
	if p.Metrics != nil {
		if err != nil {
			p.Metrics.Runs.WithLabelValues("failed_" + Stage(err)).Inc()
		} else {
			p.Metrics.Runs.WithLabelValues("success").Inc()
			p.Metrics.LastSuccess.Set(float64(p.now().Unix()))
		}
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context) (Result, error) {
	opts := p.Options
	if opts.ArtifactName == "" {
		opts.ArtifactName = ArtifactName
	}
	var res Result
	if p.NewRunID != nil {
		res.RunID = p.NewRunID()
	} else {
		res.RunID = manifest.NewRunID()
	}
	ctx, span := p.tracer().Start(ctx, "run", trace.WithAttributes(attribute.String("run.id", res.RunID)))
	defer span.End()

	if err := p.stage(ctx, "load", func(ctx context.Context, span trace.Span) error {
		recs, err := p.Source.Records(ctx)
		if err != nil {
			return Mark(ErrLoad, err, "read input")
		}
		ins := loader.Inspect(recs)
		log.Printf("inspected rows=%d duplicates=%d missing=%v", ins.Rows, ins.Duplicates, ins.Missing)
		res.Load = loader.Load(recs, opts.Loader)
		span.SetAttributes(
			attribute.Int("rows.read", res.Load.Read),
			attribute.Int("rows.dropped", res.Load.Dropped),
		)
		if p.Metrics != nil {
			p.Metrics.RowsRead.Add(float64(res.Load.Read))
			for reason, n := range res.Load.DropReasons {
				p.Metrics.RowsDropped.WithLabelValues(reason).Add(float64(n))
			}
		}
		if res.Load.Dropped > 0 {
			log.Printf("dropped rows=%d reasons=%v", res.Load.Dropped, res.Load.DropReasons)
		}
		if len(res.Load.Orders) == 0 {
			if opts.RequireOrders {
				return failf(ErrLoad, "no valid orders in %d rows", res.Load.Read)
			}
			log.Printf("warning: no valid orders, emitting empty report")
		}
		return nil
	}); err != nil {
		return res, err
	}

	orders := res.Load.Orders
	var (
		metricsOut aggregate.Metrics
		customers  []rank.CustomerRank
		products   []rank.ProductRank
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.stage(gctx, "aggregate", func(context.Context, trace.Span) error {
			return guard(ErrAggregate, func() {
				metricsOut = aggregate.Compute(orders, opts.Policy)
				res.Insights = insights.Compute(orders, opts.Policy)
			})
		})
	})
	g.Go(func() error {
		return p.stage(gctx, "rank", func(context.Context, trace.Span) error {
			return guard(ErrRank, func() {
				customers = rank.TopCustomers(orders, opts.TopN, opts.Policy)
				products = rank.TopProducts(orders, opts.TopN, opts.Policy)
			})
		})
	})
	if err := g.Wait(); err != nil {
		return res, err
	}

	if err := p.stage(ctx, "assemble", func(context.Context, trace.Span) error {
		res.Report = report.Assemble(metricsOut, customers, products)
		data, err := report.Encode(res.Report)
		if err != nil {
			return Mark(ErrAssemble, err, "encode")
		}
		if err := report.Validate(data); err != nil {
			return Mark(ErrAssemble, err, "validate")
		}
		digest, err := report.Digest(data)
		if err != nil {
			return Mark(ErrAssemble, err, "digest")
		}
		res.Artifact, res.Digest = data, digest
		return nil
	}); err != nil {
		return res, err
	}

	if err := p.stage(ctx, "write", func(ctx context.Context, span trace.Span) error {
		return p.write(ctx, opts, &res)
	}); err != nil {
		return res, err
	}

	if p.Metrics != nil {
		p.Metrics.Orders.Set(float64(res.Report.OrderCount))
		p.Metrics.Customers.Set(float64(res.Report.CustomerCount))
		p.Metrics.Revenue.Set(res.Report.TotalRevenue)
		p.Metrics.ArtifactBytes.Set(float64(len(res.Artifact)))
	}
	span.SetAttributes(attribute.String("artifact.digest", res.Digest))
	return res, nil
}

func (p *Pipeline) write(ctx context.Context, opts Options, res *Result) error {
	art := sink.Artifact{Name: opts.ArtifactName, RunID: res.RunID, ContentType: "application/json", Data: res.Artifact}
	if err := p.Sink.Write(ctx, art); err != nil {
		return Mark(ErrWrite, err, "artifact")
	}
	if p.Extras != nil {
		extras, err := export.Extras(res.RunID, res.Report, res.Insights, res.Load, p.now())
		if err != nil {
			return Mark(ErrWrite, err, "render extras")
		}
		for _, a := range extras {
			if err := p.Extras.Write(ctx, a); err != nil {
				return Mark(ErrWrite, err, a.Name)
			}
		}
	}
	created := p.now()
	if p.Manifest != nil {
		m := manifest.Manifest{
			RunID:                res.RunID,
			ArtifactPath:         opts.ArtifactPath,
			Digest:               res.Digest,
			OrderCount:           res.Report.OrderCount,
			DroppedRows:          res.Load.Dropped,
			CreatedAtEpochSecond: created.Unix(),
		}
		if err := p.Manifest.PublishLatest(ctx, m); err != nil {
			return Mark(ErrWrite, err, "manifest")
		}
	}
	if p.Archive != nil {
		e := archive.Entry{
			RunID:      res.RunID,
			CreatedAt:  created.UnixNano(),
			Digest:     res.Digest,
			OrderCount: res.Report.OrderCount,
			Dropped:    res.Load.Dropped,
			Report:     json.RawMessage(res.Artifact),
		}
		if err := p.Archive.Put(e); err != nil {
			return Mark(ErrWrite, err, "archive")
		}
	}
	return nil
}
