package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Sink stores build records.
type Sink interface {
	WritePackage(ctx context.Context, rec PackageRecord) error
	WriteSuite(ctx context.Context, rec SuiteRecord) error
}

// objectWriter stores one object under a key. Both sinks share the encoding
// logic through it.
type objectWriter interface {
	put(ctx context.Context, key, contentType string, data []byte) error
}

func writePackage(ctx context.Context, w objectWriter, rec PackageRecord) error {
	if rec.RunID == "" {
		return errors.New("report: run ID is required")
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode package record: %w", err)
	}
	return w.put(ctx, PackageKey(rec.RunID, rec.Package.Name), "application/json", data)
}

func writeSuite(ctx context.Context, w objectWriter, rec SuiteRecord) error {
	if rec.RunID == "" {
		return errors.New("report: run ID is required")
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode suite record: %w", err)
	}
	if err := w.put(ctx, SuiteKey(rec.RunID), "application/json", data); err != nil {
		return err
	}
	return w.put(ctx, SummaryKey(rec.RunID), "text/markdown", []byte(Markdown(rec)))
}

// FileSink writes records below a directory.
type FileSink struct {
	Dir string
}

var _ Sink = (*FileSink)(nil)

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, errors.New("report: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	return &FileSink{Dir: dir}, nil
}

// WritePackage implements Sink.
func (s *FileSink) WritePackage(ctx context.Context, rec PackageRecord) error {
	return writePackage(ctx, s, rec)
}

// WriteSuite implements Sink.
func (s *FileSink) WriteSuite(ctx context.Context, rec SuiteRecord) error {
	return writeSuite(ctx, s, rec)
}

// put writes through a temporary file so readers never see a partial record.
func (s *FileSink) put(ctx context.Context, key, _ string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store report %s: %w", key, err)
	}
	return nil
}

// Multi writes every record to each sink and joins the errors.
type Multi []Sink

// WritePackage implements Sink.
func (m Multi) WritePackage(ctx context.Context, rec PackageRecord) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WritePackage(ctx, rec))
	}
	return errors.Join(errs...)
}

// WriteSuite implements Sink.
func (m Multi) WriteSuite(ctx context.Context, rec SuiteRecord) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteSuite(ctx, rec))
	}
	return errors.Join(errs...)
}
