package fixtures

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/curvewatch/pkg/logger"
)

const (
	directoryPermission = 0750
	filePermission      = 0600
)

// WriteFiles generates a population and writes the facts and assumption
// files. An empty assumptionsPath skips the assumptions.
func (g *Generator) WriteFiles(ctx context.Context, factsPath, assumptionsPath string) error {
	facts := g.Facts()
	if err := writeFile(factsPath, func(f *os.File) error { return WriteFacts(f, facts) }); err != nil {
		return fmt.Errorf("write facts: %w", err)
	}

	var rows int
	if assumptionsPath != "" {
		curves := g.Assumptions(facts)
		rows = len(curves)
		if err := writeFile(assumptionsPath, func(f *os.File) error { return WriteAssumptions(f, curves) }); err != nil {
			return fmt.Errorf("write assumptions: %w", err)
		}
	}

	logger.Get().Info(ctx, "fixtures written",
		logger.String("facts", factsPath),
		logger.Int("factRows", len(facts)),
		logger.String("assumptions", assumptionsPath),
		logger.Int("assumptionRows", rows),
		logger.Int64("seed", int64(g.cfg.Seed))) //nolint:gosec // seeds are small
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
