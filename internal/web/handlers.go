package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kingsfoil/refdata/internal/core"
	"github.com/kingsfoil/refdata/internal/logging"
	"github.com/kingsfoil/refdata/internal/tabular"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sourceInfo is the catalog representation of one registered source.
type sourceInfo struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Columns   []string `json:"columns"`
	UniqueKey []string `json:"unique_key"`
	Variants  []string `json:"variants,omitempty"`
	MultiPart bool     `json:"multi_part"`
}

func (s *Server) handleListSources(w http.ResponseWriter, _ *http.Request) {
	configs := s.service.Sources()
	out := make([]sourceInfo, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, sourceInfo{
			Code:      cfg.Code,
			Name:      cfg.Name,
			Columns:   cfg.ColumnNames(),
			UniqueKey: cfg.UniqueKey,
			Variants:  cfg.Variants,
			MultiPart: cfg.MultiPart,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleIngest accepts one uploaded file as multipart form data.
//
// Form fields: file (required), version_label (required), variant,
// part_index, part_count.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	sourceCode := chi.URLParam(r, "sourceCode")

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Ingest.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	partIndex, _ := strconv.Atoi(r.FormValue("part_index"))
	partCount, _ := strconv.Atoi(r.FormValue("part_count"))

	records, err := tabular.Parse(header.Filename, file)
	if err != nil {
		if errors.Is(err, tabular.ErrUnsupportedFormat) {
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.IngestFile(r.Context(), core.IngestRequest{
		SourceCode:    sourceCode,
		Variant:       r.FormValue("variant"),
		VersionLabel:  r.FormValue("version_label"),
		PartIndex:     partIndex,
		DeclaredParts: partCount,
		FileName:      header.Filename,
		Records:       records,
	})
	if err != nil {
		logger.Warn("ingest rejected", "source", sourceCode, "file", header.Filename, "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.service.ListVersions(r.Context(),
		chi.URLParam(r, "sourceCode"), r.URL.Query().Get("variant"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if versions == nil {
		versions = []core.VersionMeta{}
	}
	writeJSON(w, http.StatusOK, versions)
}

type promoteRequest struct {
	Variant      string `json:"variant"`
	VersionLabel string `json:"version_label"`
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	sourceCode := chi.URLParam(r, "sourceCode")
	if err := s.service.PromoteVersion(r.Context(), sourceCode, req.Variant, req.VersionLabel); err != nil {
		writeDomainError(w, err)
		return
	}

	logging.FromContext(r.Context()).Info("version promoted via API",
		"source", sourceCode, "variant", req.Variant, "label", req.VersionLabel)
	writeJSON(w, http.StatusOK, map[string]string{"status": "promoted"})
}

// writeDomainError maps core error types to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		unknownSource *core.UnknownSourceError
		structural    *core.StructuralError
		partMismatch  *core.PartCountMismatchError
		closed        *core.VersionClosedError
		notCompleted  *core.VersionNotCompletedError
	)
	switch {
	case errors.As(err, &unknownSource):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &structural):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &partMismatch), errors.As(err, &closed), errors.As(err, &notCompleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrTooManyIngests):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
