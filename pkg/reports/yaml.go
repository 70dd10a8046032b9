package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/topolord/topolord/pkg/ingest"
)

// YAMLExport writes the services document understood by the YAML importer,
// so an export can be edited by hand and fed straight back in.
type YAMLExport struct {
	store ExportStore
}

// NewYAMLExport creates a new YAML export generator.
func NewYAMLExport(s ExportStore) *YAMLExport {
	return &YAMLExport{store: s}
}

// Generate renders the current graph as a YAML services document.
func (e *YAMLExport) Generate(ctx context.Context, params ExportParams) (io.Reader, error) {
	graph, err := e.store.GetGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	services, deps := filterGraph(graph, params)

	outgoing := make(map[string][]ingest.DocDependency)
	for _, dep := range deps {
		outgoing[dep.SourceID] = append(outgoing[dep.SourceID], ingest.DocDependency{
			Target:   dep.TargetID,
			Protocol: dep.Protocol,
		})
	}
	for _, edges := range outgoing {
		sort.Slice(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
	}

	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })
	doc := ingest.Document{}
	for _, svc := range services {
		doc.Services = append(doc.Services, ingest.DocService{
			Name:         svc.ID,
			Team:         svc.Team,
			Email:        svc.Email,
			IPAddress:    svc.IPAddress,
			MACAddress:   svc.MACAddress,
			Category:     svc.Category,
			Tags:         svc.Tags,
			Dependencies: outgoing[svc.ID],
		})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal yaml: %w", err)
	}
	return bytes.NewReader(data), nil
}
