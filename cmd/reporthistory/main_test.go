package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"salesanalytics/internal/aggregate"
	"salesanalytics/internal/archive"
	"salesanalytics/internal/manifest"
	"salesanalytics/internal/model"
	"salesanalytics/internal/report"
)

func archived(t *testing.T) (*archive.InMemoryStore, archive.Entry) {
	t.Helper()
	data, err := report.Encode(report.Assemble(aggregate.Compute(nil, model.DefaultPolicy), nil, nil))
	require.NoError(t, err)
	d, err := report.Digest(data)
	require.NoError(t, err)

	s := archive.NewInMemoryStore()
	e := archive.Entry{RunID: "run-1", CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).UnixNano(), Digest: d, Report: data}
	require.NoError(t, s.Put(e))
	return s, e
}

func TestListRuns(t *testing.T) {
	s, _ := archived(t)
	require.NoError(t, s.Put(archive.Entry{RunID: "run-0", CreatedAt: 1, OrderCount: 12345, Digest: "sha256:00", Report: []byte(`{}`)}))

	var buf bytes.Buffer
	require.NoError(t, listRuns(&buf, s))
	out := buf.String()
	require.Contains(t, out, "12,345")
	require.Contains(t, out, "2 runs archived")
	require.Less(t, bytes.Index(buf.Bytes(), []byte("run-0")), bytes.Index(buf.Bytes(), []byte("run-1")))
}

func TestShowRun(t *testing.T) {
	s, e := archived(t)
	var buf bytes.Buffer
	require.NoError(t, showRun(&buf, s, "run-1"))
	require.Equal(t, string(e.Report), buf.String())

	require.Error(t, showRun(&buf, s, "missing"))

	e.RunID, e.Digest = "run-2", "sha256:bad"
	require.NoError(t, s.Put(e))
	require.ErrorContains(t, showRun(&buf, s, "run-2"), "digest mismatch")
}

// failingStore reports read errors from Has.
type failingStore struct{ *archive.InMemoryStore }

func (failingStore) Has(string) (bool, error) { return false, errors.New("io error") }

func TestShowRun_SurfacesLookupErrors(t *testing.T) {
	s, _ := archived(t)
	var buf bytes.Buffer
	require.ErrorContains(t, showRun(&buf, failingStore{s}, "run-1"), "io error")
	require.Zero(t, buf.Len())
}

func TestCheckLatest(t *testing.T) {
	s, e := archived(t)
	now := time.Unix(1_000, 0)

	var buf bytes.Buffer
	m := manifest.Manifest{RunID: "run-1", Digest: e.Digest, CreatedAtEpochSecond: 940}
	require.NoError(t, checkLatest(&buf, s, m, now))
	require.Contains(t, buf.String(), "age=1m0s")
	require.Contains(t, buf.String(), "archive matches manifest")

	m.Digest = "sha256:other"
	require.Error(t, checkLatest(&buf, s, m, now))

	buf.Reset()
	require.NoError(t, checkLatest(&buf, s, manifest.Manifest{RunID: "gone"}, now))
	require.Contains(t, buf.String(), "not archived")
}
