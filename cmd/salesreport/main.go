package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"

	"salesanalytics/internal/archive"
	"salesanalytics/internal/config"
	"salesanalytics/internal/loader"
	"salesanalytics/internal/manifest"
	"salesanalytics/internal/metrics"
	"salesanalytics/internal/model"
	"salesanalytics/internal/pipeline"
	"salesanalytics/internal/sink"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	cfg, err := config.Load("salesreport", os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("salesreport failed: stage=%s: %v", pipeline.Stage(err), err)
	}
}

// closers collects resources released when run returns.
type closers []io.Closer

func (c *closers) add(x io.Closer) { *c = append(*c, x) }

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("starting salesreport input=%s format=%s output=%s top=%d include-cancelled=%v", cfg.Input, cfg.InputFormat(), cfg.Output, cfg.TopN, cfg.IncludeCancelled)

	var res closers
	defer res.close()

	src, err := openSource(cfg, &res)
	if err != nil {
		return err
	}

	remote, err := remoteSinks(ctx, cfg, &res)
	if err != nil {
		return err
	}
	out, err := sink.NewFileWriter(filepath.Dir(cfg.Output))
	if err != nil {
		return pipeline.Mark(pipeline.ErrWrite, err, "init output")
	}
	outputs := sink.NewMultiWriter(out)
	for _, w := range remote {
		outputs.Add(w)
	}
	log.Printf("artifact sinks=%d", outputs.Len())
	p := &pipeline.Pipeline{
		Source:  src,
		Sink:    outputs,
		Metrics: metrics.NewRegistry(),
		Options: pipeline.Options{
			Policy:        cfg.Policy(),
			TopN:          cfg.TopN,
			Loader:        loader.Options{DefaultStatus: model.Status(strings.ToLower(cfg.DefaultStatus))},
			RequireOrders: cfg.RequireOrders,
			ArtifactName:  filepath.Base(cfg.Output),
			ArtifactPath:  cfg.Output,
		},
	}
	if cfg.ExtrasDir != "" {
		fw, err := sink.NewFileWriter(cfg.ExtrasDir)
		if err != nil {
			return pipeline.Mark(pipeline.ErrWrite, err, "init extras")
		}
		p.Extras = sink.NewMultiWriter(append([]sink.Writer{fw}, remote...)...)
	}

	pubs := []manifest.Publisher{manifest.NewFilesystemManifest(cfg.ManifestDir)}
	if cfg.Kafka.Bootstrap != "" && cfg.Kafka.ManifestTopic != "" {
		pubs = append(pubs, manifest.NewKafkaManifest(cfg.Kafka.Bootstrap, cfg.Kafka.ManifestTopic, manifest.LatestKey))
	}
	p.Manifest = manifest.MultiPublisher(pubs...)

	if cfg.ArchiveDir != "" {
		st, err := archive.NewPebbleStore(cfg.ArchiveDir)
		if err != nil {
			return pipeline.Mark(pipeline.ErrWrite, err, "init archive")
		}
		res.add(st)
		p.Archive = st
	}

	result, runErr := p.Run(ctx)
	if runErr == nil {
		log.Printf("run=%s orders=%d customers=%d revenue=%.2f dropped=%d digest=%s", result.RunID, result.Report.OrderCount, result.Report.CustomerCount, result.Report.TotalRevenue, result.Load.Dropped, result.Digest)
	}

	if cfg.MetricsTextfile != "" {
		if err := p.Metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Printf("metrics: %v", err)
		}
	}
	if cfg.MetricsPushURL != "" {
		if err := p.Metrics.Push(ctx, cfg.MetricsPushURL); err != nil {
			log.Printf("metrics: %v", err)
		}
	}
	return runErr
}

func openSource(cfg config.Config, res *closers) (loader.Source, error) {
	switch cfg.InputFormat() {
	case config.FormatSQL:
		db, err := loader.OpenDB(cfg.SQLDSN())
		if err != nil {
			return nil, pipelineLoadErr(err)
		}
		res.add(db)
		return loader.NewSQLSource(db, cfg.Query), nil
	case config.FormatKafka:
		ks, err := loader.NewKafkaSource(loader.KafkaConfig{
			Bootstrap:   cfg.Kafka.Bootstrap,
			Topic:       cfg.KafkaTopic(),
			GroupID:     cfg.Kafka.GroupID,
			IdleTimeout: cfg.Kafka.IdleTimeout,
			JoinTimeout: cfg.Kafka.JoinTimeout,
			MaxMessages: cfg.Kafka.MaxMessages,
		})
		if err != nil {
			return nil, pipelineLoadErr(err)
		}
		res.add(ks)
		return ks, nil
	}

	var r io.Reader = os.Stdin
	if cfg.Input != "-" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return nil, pipelineLoadErr(err)
		}
		res.add(f)
		r = f
		if cfg.Progress {
			if st, err := f.Stat(); err == nil {
				bar := progressbar.DefaultBytes(st.Size(), "loading")
				r = io.TeeReader(f, bar)
			}
		}
	}
	if cfg.InputFormat() == config.FormatJSONL {
		return loader.NewJSONLSource(r), nil
	}
	return loader.NewCSVSource(r), nil
}

func pipelineLoadErr(err error) error {
	return pipeline.Mark(pipeline.ErrLoad, err, "open input")
}

func remoteSinks(ctx context.Context, cfg config.Config, res *closers) ([]sink.Writer, error) {
	var ws []sink.Writer
	if cfg.Kafka.ArtifactTopic != "" {
		kw := sink.NewKafkaWriter(cfg.Kafka.Bootstrap, cfg.Kafka.ArtifactTopic)
		res.add(kw)
		ws = append(ws, kw)
	}
	if cfg.S3.Bucket != "" {
		s3w, err := sink.NewS3Writer(ctx, sink.S3Config{Bucket: cfg.S3.Bucket, Region: cfg.S3.Region, Endpoint: cfg.S3.Endpoint, Prefix: cfg.S3.Prefix})
		if err != nil {
			return nil, pipeline.Mark(pipeline.ErrWrite, err, "init s3")
		}
		ws = append(ws, s3w)
	}
	if cfg.GCS.Bucket != "" {
		gw, err := sink.NewGCSWriter(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
		if err != nil {
			return nil, pipeline.Mark(pipeline.ErrWrite, err, "init gcs")
		}
		res.add(gw)
		ws = append(ws, gw)
	}
	if cfg.Redis.Addr != "" {
		rw := sink.NewRedisWriter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key, cfg.Redis.TTL)
		res.add(rw)
		ws = append(ws, rw)
	}
	return ws, nil
}
