package server

import (
	"encoding/binary"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/bitagoras/xtype/pkg/xtype"
)

func writeSampleFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.xt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w, err := xtype.NewWriter(f, xtype.Options{})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	v := xtype.Dict(
		xtype.Member{Key: "name", Value: xtype.String("sensor-1")},
		xtype.Member{Key: "rows", Value: xtype.List(xtype.Int(10), xtype.Int(20), xtype.Int(30))},
	)
	if err := w.WriteValue(v); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func newTestEcho(t *testing.T) (*echo.Echo, *Server) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(log, binary.NativeEndian)
	t.Cleanup(func() { _ = srv.Close() })
	e := echo.New()
	srv.Register(e)
	return e, srv
}

func doRequest(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func registerFile(t *testing.T, e *echo.Echo, path string) string {
	t.Helper()
	rec := doRequest(t, e, http.MethodPost, "/v1/files", `{"path":`+jsonString(path)+`}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("empty file id")
	}
	return resp.ID
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestFileLifecycle(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	id := registerFile(t, e, writeSampleFile(t))

	rec := doRequest(t, e, http.MethodGet, "/v1/files", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), id) {
		t.Fatalf("list should contain %s: %s", id, rec.Body.String())
	}

	rec = doRequest(t, e, http.MethodDelete, "/v1/files/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doRequest(t, e, http.MethodGet, "/v1/files/"+id+"/keys", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("keys after delete: status %d", rec.Code)
	}
}

func TestKeysEndpoint(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	id := registerFile(t, e, writeSampleFile(t))

	rec := doRequest(t, e, http.MethodGet, "/v1/files/"+id+"/keys", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("keys: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Keys []string `json:"keys"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Keys) != 2 || resp.Keys[0] != "name" || resp.Keys[1] != "rows" {
		t.Fatalf("keys: got %v", resp.Keys)
	}
}

func TestValueEndpoint(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	id := registerFile(t, e, writeSampleFile(t))

	rec := doRequest(t, e, http.MethodGet, "/v1/files/"+id+"/value?path=rows[-1]", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("value: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Kind  string `json:"kind"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Kind != "int" {
		t.Fatalf("kind: got %s", resp.Kind)
	}
	if n, ok := resp.Value.(float64); !ok || n != 30 {
		t.Fatalf("value: got %v", resp.Value)
	}

	rec = doRequest(t, e, http.MethodGet, "/v1/files/"+id+"/value?path=missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing key: status %d", rec.Code)
	}
	rec = doRequest(t, e, http.MethodGet, "/v1/files/"+id+"/value?path=name[0]", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad selector: status %d", rec.Code)
	}
}

func TestDebugEndpoint(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	id := registerFile(t, e, writeSampleFile(t))

	rec := doRequest(t, e, http.MethodGet, "/v1/files/"+id+"/debug", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("debug: status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"{", `s(4): "name"`, "}"} {
		if !strings.Contains(body, want) {
			t.Fatalf("debug output missing %q:\n%s", want, body)
		}
	}
}

func TestAddFileErrors(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doRequest(t, e, http.MethodPost, "/v1/files", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty path: status %d", rec.Code)
	}
	rec = doRequest(t, e, http.MethodPost, "/v1/files", `{"path":"/does/not/exist.xt"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file: status %d", rec.Code)
	}
}
