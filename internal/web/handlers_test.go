package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kingsfoil/refdata/internal/config"
	"github.com/kingsfoil/refdata/internal/core"
	"github.com/kingsfoil/refdata/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1", Port: 0,
			ReadTimeout: time.Minute, WriteTimeout: time.Minute,
			IdleTimeout: time.Minute, ShutdownTimeout: 5 * time.Second,
		},
		Ingest: config.IngestConfig{
			MaxFileSize:     4 << 20,
			MaxConcurrent:   2,
			MaxWaitTime:     time.Second,
			HeaderScanRows:  15,
			AssemblyMaxWait: time.Minute,
			SweepInterval:   time.Minute,
		},
		Rate:    config.RateLimitConfig{Enabled: false},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestServer(t *testing.T) (*Server, *store.MemStore) {
	t.Helper()
	return newTestServerWithConfig(t, testConfig())
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config) (*Server, *store.MemStore) {
	t.Helper()
	if _, ok := core.Lookup("WEB_FEE_TEST"); !ok {
		core.Register(core.SourceConfig{
			Code:  "WEB_FEE_TEST",
			Name:  "Web Test Fee Schedule",
			Table: "web_fee_test",
			Columns: []core.ColumnSpec{
				{Name: "hcpcs_code", Type: core.KindText, Required: true, Code: true,
					Aliases: []string{"HCPCS"}},
				{Name: "work_rvu", Type: core.KindNumeric, Required: true,
					Aliases: []string{"WORK RVU"}},
			},
			UniqueKey: []string{"hcpcs_code"},
		})
	}

	st := store.NewMemStore()
	service := core.NewService(st, core.Options{
		HeaderScanRows: cfg.Ingest.HeaderScanRows,
		MaxConcurrent:  cfg.Ingest.MaxConcurrent,
		MaxWait:        cfg.Ingest.MaxWaitTime,
	})
	return NewServer(service, cfg), st
}

// multipartUpload builds a multipart body with a file part and form fields.
func multipartUpload(t *testing.T, fileName, contents string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(contents)); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// ----------------------------------------------------------------------------
// Ingest Endpoint Tests
// ----------------------------------------------------------------------------

func TestHandleIngest(t *testing.T) {
	srv, st := newTestServer(t)

	body, contentType := multipartUpload(t, "pfs.csv",
		"HCPCS,WORK RVU\n99213,1.5\n99214,2.1\n",
		map[string]string{"version_label": "2025Q1"})

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/WEB_FEE_TEST", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result core.IngestResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Status != core.StatusCompleted || result.AcceptedRows != 2 {
		t.Errorf("result = %+v, want completed with 2 rows", result)
	}

	key := core.VersionKey{Source: "WEB_FEE_TEST", Label: "2025Q1"}
	if len(st.Rows(key)) != 2 {
		t.Errorf("persisted rows = %d, want 2", len(st.Rows(key)))
	}
}

func TestHandleIngestErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		fileName   string
		contents   string
		fields     map[string]string
		wantStatus int
	}{
		{
			name:       "unknown source",
			path:       "/api/ingest/NOPE",
			fileName:   "f.csv",
			contents:   "HCPCS,WORK RVU\n99213,1.5\n",
			fields:     map[string]string{"version_label": "v1"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing version label",
			path:       "/api/ingest/WEB_FEE_TEST",
			fileName:   "f.csv",
			contents:   "HCPCS,WORK RVU\n99213,1.5\n",
			fields:     nil,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "legacy xls rejected",
			path:       "/api/ingest/WEB_FEE_TEST",
			fileName:   "legacy.xls",
			contents:   "binary junk",
			fields:     map[string]string{"version_label": "v1"},
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "no header row",
			path:       "/api/ingest/WEB_FEE_TEST",
			fileName:   "f.csv",
			contents:   "nothing,recognizable\nhere,either\n",
			fields:     map[string]string{"version_label": "v1"},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tt.fileName, tt.contents, tt.fields)
			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandleIngestUploadRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 2}
	srv, _ := newTestServerWithConfig(t, cfg)

	// The ingest route carries its own tighter bucket than the general limit
	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		body, contentType := multipartUpload(t, "pfs.csv",
			"HCPCS,WORK RVU\n99213,1.5\n",
			map[string]string{"version_label": fmt.Sprintf("rl-%d", i)})
		req := httptest.NewRequest(http.MethodPost, "/api/ingest/WEB_FEE_TEST", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, want)
		}
	}

	// Other routes stay under the general limit only
	req := httptest.NewRequest(http.MethodGet, "/api/sources", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("sources status = %d after upload limit hit, want 200", rec.Code)
	}
}

// ----------------------------------------------------------------------------
// Version Endpoint Tests
// ----------------------------------------------------------------------------

func TestHandlePromoteAndList(t *testing.T) {
	srv, st := newTestServer(t)

	// Ingest a version first
	body, contentType := multipartUpload(t, "pfs.csv",
		"HCPCS,WORK RVU\n99213,1.5\n",
		map[string]string{"version_label": "2025Q2"})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/WEB_FEE_TEST", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d", rec.Code)
	}

	// Promote it
	promoteBody := strings.NewReader(`{"version_label": "2025Q2"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/versions/WEB_FEE_TEST/promote", promoteBody)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("promote status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if _, ok := st.CurrentVersion("WEB_FEE_TEST", ""); !ok {
		t.Error("no current version after promote")
	}

	// Promoting a version that was never ingested conflicts
	promoteBody = strings.NewReader(`{"version_label": "never"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/versions/WEB_FEE_TEST/promote", promoteBody)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("promote missing status = %d, want 409", rec.Code)
	}

	// List shows the promoted version
	req = httptest.NewRequest(http.MethodGet, "/api/versions/WEB_FEE_TEST", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var versions []core.VersionMeta
	if err := json.NewDecoder(rec.Body).Decode(&versions); err != nil {
		t.Fatal(err)
	}
	if len(versions) == 0 || !versions[0].IsCurrent {
		t.Errorf("versions = %+v, want promoted entry first", versions)
	}
}

func TestHandleListSources(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sources", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var sources []sourceInfo
	if err := json.NewDecoder(rec.Body).Decode(&sources); err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, s := range sources {
		if s.Code == "WEB_FEE_TEST" {
			found = true
			if len(s.Columns) != 2 || len(s.UniqueKey) != 1 {
				t.Errorf("source = %+v, want 2 columns and 1 key column", s)
			}
		}
	}
	if !found {
		t.Error("registered source missing from catalog")
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}
