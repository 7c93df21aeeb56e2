package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"salesanalytics/internal/archive"
	"salesanalytics/internal/manifest"
	"salesanalytics/internal/report"
)

func main() {
	var (
		archiveDir     string
		manifestSource string
		manifestDir    string
		bootstrap      string
		topic          string
		key            string
		runID          string
		printSchema    bool
	)
	flag.StringVar(&archiveDir, "archive-dir", "output/archive", "pebble archive dir")
	flag.StringVar(&manifestSource, "manifest-source", "file", "file|kafka|none")
	flag.StringVar(&manifestDir, "manifest-dir", "output", "manifest dir for file mode")
	flag.StringVar(&bootstrap, "bootstrap", "localhost:19092", "kafka bootstrap")
	flag.StringVar(&topic, "topic", "sales.manifest", "manifest topic")
	flag.StringVar(&key, "key", manifest.LatestKey, "manifest record key")
	flag.StringVar(&runID, "run", "", "verify and print the archived report of this run")
	flag.BoolVar(&printSchema, "schema", false, "print the report JSON Schema and exit")
	flag.Parse()

	if printSchema {
		if _, err := os.Stdout.Write(report.Schema()); err != nil {
			log.Fatalf("schema: %v", err)
		}
		return
	}

	store, err := archive.NewPebbleStore(archiveDir)
	if err != nil {
		log.Fatalf("open archive: %v", err)
	}
	defer store.Close()

	if runID != "" {
		if err := showRun(os.Stdout, store, runID); err != nil {
			log.Fatalf("run %s: %v", runID, err)
		}
		return
	}

	if err := listRuns(os.Stdout, store); err != nil {
		log.Fatalf("list runs: %v", err)
	}

	var mReader manifest.Reader
	switch manifestSource {
	case "file":
		mReader = manifest.NewFilesystemManifest(manifestDir)
	case "kafka":
		mReader = manifest.NewKafkaReader(bootstrap, topic, key)
	case "none":
		return
	default:
		log.Fatalf("unknown manifest source %q", manifestSource)
	}
	m, err := mReader.ReadLatest()
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}
	if err := checkLatest(os.Stdout, store, m, time.Now()); err != nil {
		log.Fatalf("latest: %v", err)
	}
}

// listRuns prints one line per archived run, oldest first.
func listRuns(w io.Writer, s archive.Store) error {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tRUN\tORDERS\tDROPPED\tDIGEST")
	n := 0
	err := s.Range(func(e archive.Entry) error {
		n++
		created := time.Unix(0, e.CreatedAt).UTC().Format(time.RFC3339)
		_, err := p.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", created, e.RunID, e.OrderCount, e.Dropped, e.Digest)
		return err
	})
	if err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = p.Fprintf(w, "%d runs archived\n", n)
	return err
}

// showRun re-validates an archived report, checks its digest and prints it.
func showRun(w io.Writer, s archive.Store, runID string) error {
	ok, err := s.Has(runID)
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	if !ok {
		return fmt.Errorf("not archived")
	}
	e, _ := s.Get(runID)
	if err := report.Validate(e.Report); err != nil {
		return err
	}
	d, err := report.Digest(e.Report)
	if err != nil {
		return err
	}
	if d != e.Digest {
		return fmt.Errorf("digest mismatch: archived %s, computed %s", e.Digest, d)
	}
	_, err = w.Write(e.Report)
	return err
}

// checkLatest reports the manifest and whether the archive holds the same run.
func checkLatest(w io.Writer, s archive.Store, m manifest.Manifest, now time.Time) error {
	age := now.Sub(time.Unix(m.CreatedAtEpochSecond, 0)).Truncate(time.Second)
	fmt.Fprintf(w, "latest manifest: run=%s artifact=%s orders=%d dropped=%d age=%s\n",
		m.RunID, m.ArtifactPath, m.OrderCount, m.DroppedRows, age)
	e, ok := s.Get(m.RunID)
	if !ok {
		fmt.Fprintln(w, "latest run is not archived")
		return nil
	}
	if e.Digest != m.Digest {
		return fmt.Errorf("manifest digest %s does not match archive %s", m.Digest, e.Digest)
	}
	fmt.Fprintln(w, "archive matches manifest")
	return nil
}
