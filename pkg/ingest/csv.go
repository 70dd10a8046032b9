package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/topolord/topolord/pkg/topology"
)

// ParseCSV reads a dependency listing with one edge per row. The mapping
// names the columns holding the source service, the target service, and
// optionally the protocol. Every distinct source/target value becomes one
// service; duplicate names collapse to a single service object.
func ParseCSV(r io.Reader, mapping Mapping) (*Result, error) {
	if mapping.Service == "" || mapping.DependsOn == "" {
		mapping = DefaultMapping()
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	srcCol, dstCol, protoCol := -1, -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case mapping.Service:
			srcCol = i
		case mapping.DependsOn:
			dstCol = i
		case mapping.Protocol:
			if mapping.Protocol != "" {
				protoCol = i
			}
		}
	}
	if srcCol < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, mapping.Service)
	}
	if dstCol < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, mapping.DependsOn)
	}

	result := &Result{}
	seen := make(map[string]bool)
	addService := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		result.Services = append(result.Services, topology.Service{
			ID:          name,
			DisplayName: name,
			IsManual:    true,
		})
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		if srcCol >= len(record) || dstCol >= len(record) {
			return nil, fmt.Errorf("csv line %d: too few columns", line)
		}

		src := strings.TrimSpace(record[srcCol])
		dst := strings.TrimSpace(record[dstCol])
		if src == "" && dst == "" {
			continue
		}
		addService(src)
		addService(dst)

		if src == "" || dst == "" {
			continue // row declares a service without an edge
		}
		protocol := ""
		if protoCol >= 0 && protoCol < len(record) {
			protocol = strings.TrimSpace(record[protoCol])
		}
		result.Dependencies = append(result.Dependencies, topology.Dependency{
			SourceID: src,
			TargetID: dst,
			Protocol: protocol,
		})
	}

	return result, nil
}
