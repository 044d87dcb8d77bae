package evecache

import "log/slog"

// DecodeStats counts what a decode pass has produced.
type DecodeStats struct {
	Bytes   int
	Values  int
	Shared  int
	Refs    int
	Rows    int
	Streams int
}

func (s *DecodeStats) Add(another DecodeStats) {
	s.Bytes += another.Bytes
	s.Values += another.Values
	s.Shared += another.Shared
	s.Refs += another.Refs
	s.Rows += another.Rows
	s.Streams += another.Streams
}

func (s DecodeStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bytes", s.Bytes),
		slog.Int("values", s.Values),
		slog.Int("shared", s.Shared),
		slog.Int("refs", s.Refs),
		slog.Int("rows", s.Rows),
		slog.Int("streams", s.Streams),
	)
}
