package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/topolord/topolord/pkg/ingest"
	"github.com/topolord/topolord/pkg/reports"
	"github.com/topolord/topolord/pkg/store"
)

// maxImportBytes caps the import body at 8 MiB.
const maxImportBytes = 8 << 20

// handleImport ingests a CSV or YAML topology document. The format comes
// from ?format or the Content-Type, falling back to payload sniffing; CSV
// column mapping comes from ?source, ?target and ?protocol.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		http.Error(w, `{"error":"failed_to_read_body"}`, http.StatusBadRequest)
		return
	}
	if len(body) > maxImportBytes {
		http.Error(w, `{"error":"payload_too_large"}`, http.StatusRequestEntityTooLarge)
		return
	}

	q := r.URL.Query()
	format := ingest.Format(q.Get("format"))
	if format == ingest.FormatUnknown {
		format = formatFromContentType(r.Header.Get("Content-Type"))
	}

	mapping := ingest.DefaultMapping()
	if v := q.Get("source"); v != "" {
		mapping.Service = v
	}
	if v := q.Get("target"); v != "" {
		mapping.DependsOn = v
	}
	if v := q.Get("protocol"); v != "" {
		mapping.Protocol = v
	}

	result, err := ingest.Parse(body, format, mapping)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrEmptyPayload):
			http.Error(w, `{"error":"empty_payload"}`, http.StatusBadRequest)
		case errors.Is(err, ingest.ErrUnknownFormat):
			http.Error(w, `{"error":"unknown_format","valid":["csv","yaml"]}`, http.StatusBadRequest)
		default:
			http.Error(w, fmt.Sprintf(`{"error":"parse_failed","details":"%v"}`, err), http.StatusBadRequest)
		}
		return
	}

	svcCount, depCount, err := s.store.ImportServices(r.Context(), result.Services, result.Dependencies)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.audit(r.Context(), store.AuditTopologyImported, "",
		fmt.Sprintf("%d services, %d dependencies", svcCount, depCount))
	s.invalidateCache(r.Context())

	if format == ingest.FormatUnknown {
		format = ingest.DetectFormat(body)
	}
	writeJSON(w, r, http.StatusOK, ImportResponse{
		Format:       string(format),
		Services:     svcCount,
		Dependencies: depCount,
	})
}

// handleExport streams the topology as a downloadable YAML (default) or CSV
// document.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	format := reports.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = reports.ExportFormatYAML
	}

	gen, err := reports.NewExportGenerator(format, s.store)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"invalid_export_format","details":"%v"}`, err), http.StatusBadRequest)
		return
	}

	params := reports.ExportParams{ManualOnly: r.URL.Query().Get("manual_only") == "1"}
	reader, err := gen.Generate(r.Context(), params)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_generate_export","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"export_failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", reports.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", reports.Filename(format)))
	if _, err := io.Copy(w, reader); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_stream_export","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

func formatFromContentType(ct string) ingest.Format {
	switch {
	case strings.Contains(ct, "csv"):
		return ingest.FormatCSV
	case strings.Contains(ct, "yaml"):
		return ingest.FormatYAML
	default:
		return ingest.FormatUnknown
	}
}
