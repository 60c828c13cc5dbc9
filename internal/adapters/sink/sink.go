// Package sink writes finished runs to files and Postgres.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/curvewatch/internal/domain/model"
	"github.com/okian/curvewatch/internal/domain/ratio"
)

// ErrNoRun is returned when asked to write a nil run.
var ErrNoRun = errors.New("sink: nil run")

// Writer persists a finished run.
type Writer interface {
	WriteRun(ctx context.Context, run *model.Run) error
}

// Present returns the rows as they should be shown, clamped when the run asks for it.
func Present(run *model.Run) []model.MetricRow {
	if run.Variant.ClampNegative {
		return ratio.ClampAll(run.Rows)
	}
	return run.Rows
}

// createFile creates path and its parent directory.
func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

func writeFile(path string, write func(f *os.File) error) (err error) {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return write(f)
}

// Multi fans a run out to several writers and joins their errors.
type Multi []Writer

// WriteRun calls every writer even if one fails.
func (m Multi) WriteRun(ctx context.Context, run *model.Run) error {
	var errs []error
	for _, w := range m {
		if err := w.WriteRun(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
