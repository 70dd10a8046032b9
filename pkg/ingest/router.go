package ingest

import (
	"bytes"
	"strings"
)

// DetectFormat sniffs the payload encoding when the caller didn't declare
// one. YAML documents start with a key or document marker; anything whose
// first line splits on commas is treated as CSV.
func DetectFormat(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return FormatUnknown
	}

	firstLine := trimmed
	if idx := bytes.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine = trimmed[:idx]
	}
	line := strings.TrimSpace(string(firstLine))

	if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "services:") {
		return FormatYAML
	}
	if strings.Contains(line, ":") && !strings.Contains(line, ",") {
		return FormatYAML
	}
	if strings.Contains(line, ",") {
		return FormatCSV
	}
	return FormatUnknown
}

// Parse dispatches on format, sniffing when the format is unknown.
func Parse(data []byte, format Format, mapping Mapping) (*Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyPayload
	}
	if format == FormatUnknown {
		format = DetectFormat(data)
	}
	switch format {
	case FormatCSV:
		return ParseCSV(bytes.NewReader(data), mapping)
	case FormatYAML:
		return ParseYAML(bytes.NewReader(data))
	default:
		return nil, ErrUnknownFormat
	}
}
