// Package sink writes output rows to CSV, JSON lines, SQLite or MongoDB.
//
// A sink is opened for one kind of row (matches, augment, contributors) with
// a fixed column list. Every row is tagged with the run id so rows of
// several runs can share a database.
//
// Sinks are not safe for concurrent use; the pipelines emit from a single
// goroutine.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	ierrors "github.com/matzehuels/ghdisco/pkg/errors"
)

// Formats.
const (
	FormatCSV    = "csv"
	FormatJSONL  = "jsonl"
	FormatSQLite = "sqlite"
	FormatMongo  = "mongo"
)

// Formats lists the supported output formats.
var Formats = []string{FormatCSV, FormatJSONL, FormatSQLite, FormatMongo}

// DefaultSQLitePath is used when the sqlite format is given no path.
const DefaultSQLitePath = "ghdisco.db"

// RunIDField is the field added to every row.
const RunIDField = "run_id"

// Row is one output record keyed by column name.
type Row = map[string]any

// Sink receives rows.
type Sink interface {
	Write(ctx context.Context, row Row) error
	Close() error
}

// Options configures [Open].
type Options struct {
	Format  string
	Kind    string
	Columns []string
	RunID   string

	// Path is the output file for csv and jsonl ("" or "-" for Out) and the
	// database file for sqlite.
	Path string
	Out  io.Writer

	MongoURI      string
	MongoDatabase string
}

// NewRunID returns a fresh run id.
func NewRunID() string { return uuid.NewString() }

// Open creates the sink described by opts. A missing RunID is generated.
func Open(ctx context.Context, opts Options) (Sink, error) {
	if opts.Kind == "" {
		return nil, errors.New("sink: kind is required")
	}
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}
	switch strings.ToLower(opts.Format) {
	case "", FormatCSV:
		w, closer, err := output(opts)
		if err != nil {
			return nil, err
		}
		return NewCSV(w, closer, opts.Columns, opts.RunID)
	case FormatJSONL:
		w, closer, err := output(opts)
		if err != nil {
			return nil, err
		}
		return NewJSONL(w, closer, opts.Columns, opts.RunID), nil
	case FormatSQLite:
		return OpenSQLite(ctx, sqlitePath(opts.Path), opts.Kind, opts.Columns, opts.RunID)
	case FormatMongo:
		return OpenMongo(ctx, opts.MongoURI, opts.MongoDatabase, opts.Kind, opts.Columns, opts.RunID)
	default:
		return nil, ierrors.New(ierrors.ErrCodeInvalidFormat, "unknown output format %q (want %s)", opts.Format, strings.Join(Formats, ", "))
	}
}

// output resolves the writer for file formats. The returned closer is nil
// when the writer is not owned by the sink.
func output(opts Options) (io.Writer, io.Closer, error) {
	if opts.Path == "" || opts.Path == "-" {
		if opts.Out == nil {
			return os.Stdout, nil, nil
		}
		return opts.Out, nil, nil
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(opts.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f, nil
}

// project returns the row restricted to columns, in order, with the run id.
func project(row Row, columns []string, runID string) Row {
	out := make(Row, len(columns)+1)
	for _, c := range columns {
		out[c] = row[c]
	}
	out[RunIDField] = runID
	return out
}

// cell formats a value for text output.
func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

var (
	_ Sink = (*CSV)(nil)
	_ Sink = (*JSONL)(nil)
	_ Sink = (*SQLite)(nil)
	_ Sink = (*Mongo)(nil)
)

func sqlitePath(path string) string {
	if path == "" || path == "-" {
		return DefaultSQLitePath
	}
	return path
}

// Destination describes where Open would write rows for opts.
func Destination(opts Options) string {
	switch opts.Format {
	case FormatSQLite:
		return sqlitePath(opts.Path) + " (table records, kind " + opts.Kind + ")"
	case FormatMongo:
		uri := opts.MongoURI
		if uri == "" {
			uri = DefaultMongoURI
		}
		db := opts.MongoDatabase
		if db == "" {
			db = DefaultMongoDatabase
		}
		return uri + " " + db + "." + opts.Kind
	}
	if opts.Path == "" || opts.Path == "-" {
		return "stdout (" + opts.Format + ")"
	}
	return opts.Path + " (" + opts.Format + ")"
}
