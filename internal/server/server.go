// Package server exposes xtype files over a small REST API: files are
// registered by path, then read through navigation expressions resolved
// against the on-disk encoding without materializing whole documents.
package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/bitagoras/xtype/pkg/xtype"
)

// Server holds the registry of opened files. All methods are safe for
// concurrent use; each request gets its own Navigator over the shared
// read-only mapping.
type Server struct {
	log   *slog.Logger
	order binary.ByteOrder

	mu    sync.RWMutex
	files map[string]*entry
}

type entry struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Size int64  `json:"size"`

	f *xtype.File
}

func New(log *slog.Logger, order binary.ByteOrder) *Server {
	return &Server{
		log:   log,
		order: order,
		files: make(map[string]*entry),
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/files", s.handleAddFile)
	e.GET("/v1/files", s.handleListFiles)
	e.DELETE("/v1/files/:id", s.handleRemoveFile)
	e.GET("/v1/files/:id/keys", s.handleKeys)
	e.GET("/v1/files/:id/value", s.handleValue)
	e.GET("/v1/files/:id/debug", s.handleDebug)
}

// Close releases every registered file mapping.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for id, ent := range s.files {
		if err := ent.f.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.files, id)
	}
	return first
}

type addFileRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleAddFile(c *echo.Context) error {
	var req addFileRequest
	if err := decodeJSON(c.Request().Body, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	if req.Path == "" {
		return writeError(c, http.StatusBadRequest, "path is required")
	}
	f, err := xtype.Open(req.Path, xtype.Options{Order: s.order})
	if err != nil {
		return writeError(c, http.StatusBadRequest, fmt.Sprintf("open %s: %v", req.Path, err))
	}
	ent := &entry{ID: uuid.NewString(), Path: req.Path, Size: f.Size(), f: f}

	s.mu.Lock()
	s.files[ent.ID] = ent
	s.mu.Unlock()

	s.log.Info("registered file", "id", ent.ID, "path", ent.Path, "size", ent.Size)
	return writeJSON(c, http.StatusCreated, ent)
}

func (s *Server) handleListFiles(c *echo.Context) error {
	s.mu.RLock()
	out := make([]*entry, 0, len(s.files))
	for _, ent := range s.files {
		out = append(out, ent)
	}
	s.mu.RUnlock()
	return writeJSON(c, http.StatusOK, map[string]any{"files": out})
}

func (s *Server) handleRemoveFile(c *echo.Context) error {
	id := c.Param("id")
	s.mu.Lock()
	ent, ok := s.files[id]
	if ok {
		delete(s.files, id)
	}
	s.mu.Unlock()
	if !ok {
		return writeError(c, http.StatusNotFound, "unknown file id")
	}
	if err := ent.f.Close(); err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.files[id]
	return ent, ok
}

func (s *Server) handleKeys(c *echo.Context) error {
	ent, ok := s.lookup(c.Param("id"))
	if !ok {
		return writeError(c, http.StatusNotFound, "unknown file id")
	}
	keys, err := ent.f.Nav().Keys()
	if err != nil {
		return writeNavError(c, err)
	}
	if keys == nil {
		keys = []string{}
	}
	return writeJSON(c, http.StatusOK, map[string]any{"keys": keys})
}

func (s *Server) handleValue(c *echo.Context) error {
	ent, ok := s.lookup(c.Param("id"))
	if !ok {
		return writeError(c, http.StatusNotFound, "unknown file id")
	}
	path, err := xtype.ParsePath(c.QueryParam("path"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	v, err := ent.f.Nav().Get(path...)
	if err != nil {
		return writeNavError(c, err)
	}
	return writeJSON(c, http.StatusOK, map[string]any{
		"kind":  v.Kind().String(),
		"value": v.Interface(),
	})
}

func (s *Server) handleDebug(c *echo.Context) error {
	ent, ok := s.lookup(c.Param("id"))
	if !ok {
		return writeError(c, http.StatusNotFound, "unknown file id")
	}
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	for line, err := range ent.f.Nav().Debug(xtype.DebugOptions{}) {
		if err != nil {
			return err
		}
		if _, err := io.WriteString(c.Response(), line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func decodeJSON(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(c *echo.Context, status int, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.Blob(status, echo.MIMEApplicationJSON, b)
}

func writeError(c *echo.Context, status int, msg string) error {
	return writeJSON(c, status, map[string]any{"error": msg})
}

// writeNavError maps codec errors onto HTTP statuses: lookups that miss
// are 404, malformed selectors 400, everything else 500.
func writeNavError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, xtype.ErrKeyNotFound), errors.Is(err, xtype.ErrIndexOutOfRange):
		return writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, xtype.ErrTypeMismatch),
		errors.Is(err, xtype.ErrInvalidSlice),
		errors.Is(err, xtype.ErrShapeMismatch):
		return writeError(c, http.StatusBadRequest, err.Error())
	default:
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
}
