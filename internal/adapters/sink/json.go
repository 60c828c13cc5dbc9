package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/okian/curvewatch/internal/domain/model"
)

// WriteReport writes the run as indented JSON with presented rows.
func WriteReport(w io.Writer, run *model.Run) error {
	out := *run
	out.Rows = Present(run)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// JSONFile writes the report to a path.
type JSONFile struct {
	path string
}

// NewJSONFile returns a JSON report writer.
func NewJSONFile(path string) *JSONFile { return &JSONFile{path: path} }

// WriteRun implements Writer.
func (j *JSONFile) WriteRun(_ context.Context, run *model.Run) error {
	if run == nil {
		return ErrNoRun
	}
	return writeFile(j.path, func(f *os.File) error {
		return WriteReport(f, run)
	})
}
