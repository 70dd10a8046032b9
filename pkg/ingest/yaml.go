package ingest

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/topolord/topolord/pkg/topology"
)

// Document is the YAML import/export schema.
type Document struct {
	Services []DocService `yaml:"services"`
}

// DocService is one service entry in a YAML document.
type DocService struct {
	Name         string            `yaml:"name"`
	Team         string            `yaml:"team,omitempty"`
	Email        string            `yaml:"email,omitempty"`
	IPAddress    string            `yaml:"ip_address,omitempty"`
	MACAddress   string            `yaml:"mac_address,omitempty"`
	Category     string            `yaml:"category,omitempty"`
	Tags         map[string]string `yaml:"tags,omitempty"`
	Dependencies []DocDependency   `yaml:"dependencies,omitempty"`
}

// DocDependency is one outgoing edge of a YAML service entry.
type DocDependency struct {
	Target   string `yaml:"target"`
	Protocol string `yaml:"protocol,omitempty"`
}

// ParseYAML reads a services document. Dependency targets that have no
// entry of their own still produce a service, so the document shape stays
// forgiving; duplicate names collapse to the first entry.
func ParseYAML(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read yaml payload: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if len(doc.Services) == 0 {
		return nil, fmt.Errorf("yaml document has no services")
	}

	result := &Result{}
	seen := make(map[string]bool)
	addService := func(svc topology.Service) {
		if svc.ID == "" || seen[svc.ID] {
			return
		}
		seen[svc.ID] = true
		result.Services = append(result.Services, svc)
	}

	// Explicit entries first so a named entry always beats the bare
	// placeholder created for a dependency target.
	for _, entry := range doc.Services {
		addService(topology.Service{
			ID:          entry.Name,
			DisplayName: entry.Name,
			Team:        entry.Team,
			Email:       entry.Email,
			IPAddress:   entry.IPAddress,
			MACAddress:  entry.MACAddress,
			Category:    entry.Category,
			Tags:        entry.Tags,
			IsManual:    true,
		})
	}
	for _, entry := range doc.Services {
		for _, dep := range entry.Dependencies {
			if dep.Target == "" {
				continue
			}
			addService(topology.Service{ID: dep.Target, DisplayName: dep.Target, IsManual: true})
			result.Dependencies = append(result.Dependencies, topology.Dependency{
				SourceID: entry.Name,
				TargetID: dep.Target,
				Protocol: dep.Protocol,
			})
		}
	}

	return result, nil
}
