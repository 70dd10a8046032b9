package ingest

import (
	"errors"

	"github.com/topolord/topolord/pkg/topology"
)

// Format identifies the import payload encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatYAML    Format = "yaml"
	FormatUnknown Format = ""
)

// Mapping binds CSV columns to topology fields. The dashboard's import
// dialog lets the user pick which column is which; the daemon receives the
// chosen names as query parameters.
type Mapping struct {
	Service   string // column holding the source service name
	DependsOn string // column holding the target service name
	Protocol  string // optional column holding the edge protocol
}

// DefaultMapping matches the canonical export header.
func DefaultMapping() Mapping {
	return Mapping{Service: "source", DependsOn: "target", Protocol: "protocol"}
}

// Result is a normalized import: deduplicated services plus one dependency
// per input row/entry. Imported services are manual.
type Result struct {
	Services     []topology.Service
	Dependencies []topology.Dependency
}

var (
	// ErrEmptyPayload is returned for an empty import body.
	ErrEmptyPayload = errors.New("empty import payload")

	// ErrUnknownFormat is returned when the payload is neither CSV nor YAML.
	ErrUnknownFormat = errors.New("unknown import format")

	// ErrMissingColumn is returned when a mapped CSV column is absent.
	ErrMissingColumn = errors.New("mapped column not found in header")
)
