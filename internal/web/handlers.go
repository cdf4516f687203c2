package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/core"
	"github.com/go-chi/chi/v5"
)

// maxPayloadSize bounds JSON bodies of single-record writes.
const maxPayloadSize = 1 << 20

// ImportResponse is the JSON result of an import.
type ImportResponse struct {
	Success              bool                  `json:"success"`
	Entity               string                `json:"entity"`
	Scope                string                `json:"scope,omitempty"`
	Imported             int                   `json:"imported"`
	Updated              int                   `json:"updated"`
	SkippedCount         int                   `json:"skippedCount"`
	MissingIdentifiers   []int                 `json:"missingIdentifiers"`
	DuplicateIdentifiers []string              `json:"duplicateIdentifiers"`
	Skips                []core.RowSkip        `json:"skips"`
	UnmappedHeaders      []core.UnmappedHeader `json:"unmappedHeaders"`
	DurationMs           int64                 `json:"durationMs"`
}

func toImportResponse(out *core.ImportOutcome) ImportResponse {
	resp := ImportResponse{
		Success:              true,
		Entity:               out.Entity,
		Scope:                out.Scope,
		Imported:             out.Created,
		Updated:              out.Updated,
		SkippedCount:         out.Skipped,
		MissingIdentifiers:   out.MissingIdentifiers(),
		DuplicateIdentifiers: out.DuplicateIdentifiers(),
		Skips:                out.Skips,
		UnmappedHeaders:      out.UnmappedHeaders,
		DurationMs:           out.Duration.Milliseconds(),
	}
	if resp.Skips == nil {
		resp.Skips = []core.RowSkip{}
	}
	if resp.UnmappedHeaders == nil {
		resp.UnmappedHeaders = []core.UnmappedHeader{}
	}
	return resp
}

// SchemaInfo describes one importable entity.
type SchemaInfo struct {
	Entity      string          `json:"entity"`
	Label       string          `json:"label"`
	ScopeParam  string          `json:"scopeParam,omitempty"`
	Identity    string          `json:"identity"`
	MonthFilter bool            `json:"monthFilter"`
	Headers     []string        `json:"headers"`
	Aliases     core.AliasTable `json:"aliases"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas := s.service.ListSchemas()
	out := make([]SchemaInfo, 0, len(schemas))
	for _, sc := range schemas {
		info := SchemaInfo{
			Entity:      sc.Entity,
			Label:       sc.Label,
			Identity:    sc.Identity,
			MonthFilter: sc.MonthField != "",
			Aliases:     sc.Aliases(),
		}
		if sc.Scope != nil {
			info.ScopeParam = sc.Scope.Param
		}
		for _, c := range sc.Export {
			info.Headers = append(info.Headers, c.Header)
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

// handleImport reads the multipart "file" field and upserts its rows. The
// scope comes from the schema's scope parameter in the query or form.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	schema, err := core.Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, r, fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, maxSize))
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	scope := scopeParam(r, schema)
	out, err := s.service.Import(withRequestMetadata(r), schema.Entity, scope, header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportResponse(out))
}

// handleExport streams the entity as a workbook. month is 0 (January)
// through 11 (December); it is ignored for entities without a month field.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	schema, err := core.Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	req := core.ExportRequest{Entity: schema.Entity, Scope: scopeParam(r, schema)}
	if m := r.URL.Query().Get("month"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 0 || n > 11 {
			respondError(w, r, errBadMonth)
			return
		}
		month := time.Month(n + 1)
		req.Month = &month
	}

	file, err := s.service.Export(withRequestMetadata(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeFile(w, file)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	file, err := s.service.Template(chi.URLParam(r, "entity"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeFile(w, file)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	e, err := s.service.GetRecord(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleCreateRecord accepts a JSON object keyed by canonical field name.
// Scoped entities take the scope from the query or from the payload key
// named like the scope parameter.
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	schema, err := core.Lookup(chi.URLParam(r, "entity"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	payload, err := decodePayload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	scope := scopeParam(r, schema)
	if schema.Scope != nil {
		if v, ok := payload[schema.Scope.Param].(string); ok && scope == "" {
			scope = v
		}
		delete(payload, schema.Scope.Param)
	}

	e, err := s.service.CreateRecord(withRequestMetadata(r), schema.Entity, scope, payload)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	e, err := s.service.UpdateRecord(withRequestMetadata(r), chi.URLParam(r, "entity"), chi.URLParam(r, "id"), payload)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func scopeParam(r *http.Request, schema *core.ImportSchema) string {
	if schema.Scope == nil {
		return ""
	}
	if v := r.URL.Query().Get(schema.Scope.Param); v != "" {
		return v
	}
	return r.FormValue(schema.Scope.Param)
}

func decodePayload(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadSize)
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload == nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: payload over %d bytes", errFileTooLarge, maxPayloadSize)
		}
		return nil, errBadPayload
	}
	return payload, nil
}

func writeFile(w http.ResponseWriter, f *core.ExportFile) {
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, f.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(f.Data)
}
