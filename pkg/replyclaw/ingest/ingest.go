// Package ingest turns uploaded documents into bounded plain text for the
// prompt. Supported formats: plain text, PDF, DOCX and PPTX.
//
// Every extraction writes the upload to a uniquely named temp file, extracts
// on a worker goroutine and removes the temp file on every exit path.
// Extraction failures never surface as Go errors: the extractor returns a
// descriptive "[Error reading X: ...]" string instead, so one bad upload
// cannot abort a request.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// Format is the document kind, used as the label in aggregated output.
type Format string

const (
	FormatText Format = "TXT"
	FormatPDF  Format = "PDF"
	FormatDOCX Format = "DOCX"
	FormatPPTX Format = "PPTX"
)

const tempPrefix = "replyclaw-"

// Attachment is an uploaded file: a name plus a byte content accessor.
type Attachment struct {
	// Filename is the original upload name; its extension selects the extractor.
	Filename string

	// Size is the declared size in bytes (0 if unknown).
	Size int64

	// Open returns the content. It is called at most once per extraction.
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// BytesAttachment wraps in-memory content.
func BytesAttachment(name string, data []byte) Attachment {
	return Attachment{
		Filename: name,
		Size:     int64(len(data)),
		Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(string(data))), nil
		},
	}
}

// FileAttachment wraps a file on disk.
func FileAttachment(path string) Attachment {
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	return Attachment{
		Filename: filepath.Base(path),
		Size:     size,
		Open: func(context.Context) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Extractor reads text from a document already persisted at path.
type Extractor interface {
	Format() Format
	ExtractFile(path string) (string, error)
}

// Config configures the Ingester.
type Config struct {
	// TempDir receives the scoped temp files. Default: os.TempDir().
	TempDir string `yaml:"temp_dir"`

	// MaxFileBytes bounds a single upload. Default: 25 MiB.
	MaxFileBytes int64 `yaml:"max_file_bytes"`

	// Workers bounds parallel extractions in ProcessAll. Default: 4.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the default ingestion settings.
func DefaultConfig() Config {
	return Config{
		TempDir:      filepath.Join(os.TempDir(), "replyclaw"),
		MaxFileBytes: 25 * 1024 * 1024,
		Workers:      4,
	}
}

// Ingester dispatches attachments to format extractors.
type Ingester struct {
	cfg        Config
	extractors map[string]Extractor
	logger     *slog.Logger
}

// New creates an Ingester with the built-in extractors.
func New(cfg Config, logger *slog.Logger) (*Ingester, error) {
	def := DefaultConfig()
	if cfg.TempDir == "" {
		cfg.TempDir = def.TempDir
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = def.MaxFileBytes
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.TempDir, 0o700); err != nil {
		return nil, fmt.Errorf("create ingest temp dir %q: %w", cfg.TempDir, err)
	}

	return &Ingester{
		cfg: cfg,
		extractors: map[string]Extractor{
			".txt":  textExtractor{},
			".pdf":  pdfExtractor{},
			".docx": docxExtractor{},
			".pptx": pptxExtractor{},
		},
		logger: logger.With("component", "ingest"),
	}, nil
}

// Register sets the extractor for a file extension (".pdf"), replacing the
// built-in one. It must be called before the Ingester is shared.
func (in *Ingester) Register(ext string, ex Extractor) {
	in.extractors[strings.ToLower(ext)] = ex
}

// TempDir returns the directory used for scoped temp files.
func (in *Ingester) TempDir() string { return in.cfg.TempDir }

// FormatFor returns the format for filename, or false when unsupported.
func (in *Ingester) FormatFor(filename string) (Format, bool) {
	ex, ok := in.extractors[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", false
	}
	return ex.Format(), true
}

// Extract returns the normalized text of one attachment. ok is false for
// unsupported formats and for documents with no extractable text.
func (in *Ingester) Extract(ctx context.Context, att Attachment) (string, bool) {
	ext := strings.ToLower(filepath.Ext(att.Filename))
	ex, ok := in.extractors[ext]
	if !ok {
		in.logger.Debug("unsupported attachment skipped", "file", att.Filename)
		return "", false
	}

	text, err := in.extract(ctx, ex, ext, att)
	if err != nil {
		in.logger.Warn("attachment extraction failed",
			"file", att.Filename, "format", ex.Format(), "error", err)
		return fmt.Sprintf("[Error reading %s: %v]", ex.Format(), err), true
	}

	text = Normalize(text)
	if text == "" {
		in.logger.Debug("attachment has no extractable text", "file", att.Filename)
		return "", false
	}
	return text, true
}

// ProcessAll extracts every attachment (in parallel, bounded by Workers) and
// concatenates the non-empty results as "[FMT: name]\n<text>" blocks in
// attachment order.
func (in *Ingester) ProcessAll(ctx context.Context, atts []Attachment) string {
	if len(atts) == 0 {
		return ""
	}

	results := make([]string, len(atts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.cfg.Workers)
	for i, att := range atts {
		g.Go(func() error {
			format, ok := in.FormatFor(att.Filename)
			if !ok {
				return nil
			}
			if text, ok := in.Extract(gctx, att); ok {
				results[i] = fmt.Sprintf("[%s: %s]\n%s", format, att.Filename, text)
			}
			return nil
		})
	}
	_ = g.Wait()

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		if r != "" {
			blocks = append(blocks, r)
		}
	}
	return strings.Join(blocks, "\n")
}

// SweepTemp removes leftover temp files older than maxAge. Extractions always
// clean up after themselves; this only catches files from a crashed process.
func (in *Ingester) SweepTemp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(in.cfg.TempDir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(in.cfg.TempDir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// ---------- Internal ----------

type extractResult struct {
	text string
	err  error
}

func (in *Ingester) extract(ctx context.Context, ex Extractor, ext string, att Attachment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if att.Size > in.cfg.MaxFileBytes {
		return "", fmt.Errorf("file is %d bytes, limit is %d", att.Size, in.cfg.MaxFileBytes)
	}
	if att.Open == nil {
		return "", errors.New("attachment has no content")
	}

	path := filepath.Join(in.cfg.TempDir, tempPrefix+uuid.NewString()+ext)
	defer os.Remove(path)

	if err := in.persist(ctx, att, path); err != nil {
		return "", err
	}

	done := make(chan extractResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extractResult{err: fmt.Errorf("malformed document: %v", r)}
			}
		}()
		text, err := ex.ExtractFile(path)
		done <- extractResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// persist copies the attachment into a new owner-only file at path.
func (in *Ingester) persist(ctx context.Context, att Attachment, path string) error {
	src, err := att.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening attachment: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, in.cfg.MaxFileBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if n > in.cfg.MaxFileBytes {
		return fmt.Errorf("file exceeds limit of %d bytes", in.cfg.MaxFileBytes)
	}
	return nil
}

var blankLines = regexp.MustCompile(`\n\s*\n+`)

// Normalize trims, NFC-normalizes and collapses runs of blank lines.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = norm.NFC.String(strings.TrimSpace(text))
	return blankLines.ReplaceAllString(text, "\n\n")
}
