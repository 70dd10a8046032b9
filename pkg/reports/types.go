package reports

import (
	"context"
	"io"

	"github.com/topolord/topolord/pkg/topology"
)

type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatYAML ExportFormat = "yaml"
)

type ExportParams struct {
	// ManualOnly restricts the export to hand-entered services and edges,
	// leaving provider-discovered topology out.
	ManualOnly bool
}

// ExportStore defines the interface for data access required by exports.
type ExportStore interface {
	GetGraph(ctx context.Context) (*topology.Graph, error)
}

type Generator interface {
	Generate(ctx context.Context, params ExportParams) (io.Reader, error)
}
