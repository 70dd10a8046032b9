package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/topolord/topolord/pkg/topology"
)

// CSVExport writes the dependency listing in the canonical import shape:
// one edge per row under a source,target,protocol header. Services with no
// outgoing edges get a row with an empty target so a re-import recreates
// them.
type CSVExport struct {
	store ExportStore
}

// NewCSVExport creates a new CSV export generator.
func NewCSVExport(s ExportStore) *CSVExport {
	return &CSVExport{store: s}
}

// Generate renders the current graph as CSV.
func (e *CSVExport) Generate(ctx context.Context, params ExportParams) (io.Reader, error) {
	graph, err := e.store.GetGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	services, deps := filterGraph(graph, params)

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	if err := writer.Write([]string{"source", "target", "protocol"}); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	hasEdge := make(map[string]bool)
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].SourceID != deps[j].SourceID {
			return deps[i].SourceID < deps[j].SourceID
		}
		return deps[i].TargetID < deps[j].TargetID
	})
	for _, dep := range deps {
		hasEdge[dep.SourceID] = true
		hasEdge[dep.TargetID] = true
		if err := writer.Write([]string{dep.SourceID, dep.TargetID, dep.Protocol}); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })
	for _, svc := range services {
		if hasEdge[svc.ID] {
			continue
		}
		if err := writer.Write([]string{svc.ID, "", ""}); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}

	return buf, nil
}

func filterGraph(graph *topology.Graph, params ExportParams) ([]topology.Service, []topology.Dependency) {
	services := graph.Services
	deps := graph.Dependencies
	if !params.ManualOnly {
		return services, deps
	}

	manual := make(map[string]bool)
	var kept []topology.Service
	for _, svc := range services {
		if svc.IsManual {
			manual[svc.ID] = true
			kept = append(kept, svc)
		}
	}
	var keptDeps []topology.Dependency
	for _, dep := range deps {
		if manual[dep.SourceID] && manual[dep.TargetID] {
			keptDeps = append(keptDeps, dep)
		}
	}
	return kept, keptDeps
}
