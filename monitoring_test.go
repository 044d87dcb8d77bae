package evecache

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestDecodeStats(t *testing.T) {
	var total DecodeStats
	total.Add(DecodeStats{Bytes: 10, Values: 2, Rows: 1})
	total.Add(DecodeStats{Bytes: 5, Shared: 1, Refs: 3, Streams: 1})
	if total != (DecodeStats{Bytes: 15, Values: 2, Shared: 1, Refs: 3, Rows: 1, Streams: 1}) {
		t.Fatalf("total = %+v", total)
	}

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("done", "stats", total)
	if s := buf.String(); !strings.Contains(s, "stats.bytes=15 stats.values=2 stats.shared=1 stats.refs=3 stats.rows=1 stats.streams=1") {
		t.Fatalf("log = %s", s)
	}
}
