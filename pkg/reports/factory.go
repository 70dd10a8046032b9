package reports

import "fmt"

// NewExportGenerator creates an export generator based on the format.
func NewExportGenerator(format ExportFormat, s ExportStore) (Generator, error) {
	switch format {
	case ExportFormatCSV:
		return NewCSVExport(s), nil
	case ExportFormatYAML:
		return NewYAMLExport(s), nil
	default:
		return nil, fmt.Errorf("unknown export format: %s", format)
	}
}

// ContentType returns the response media type for a format.
func ContentType(format ExportFormat) string {
	switch format {
	case ExportFormatYAML:
		return "application/x-yaml"
	default:
		return "text/csv"
	}
}

// Filename returns the attachment filename for a format.
func Filename(format ExportFormat) string {
	return fmt.Sprintf("topology.%s", format)
}
