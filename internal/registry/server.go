package registry

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/metrics"
)

// Server exposes a Store over HTTP: GET for lookup/list, POST for
// register/register_batch, DELETE for deregister.
type Server struct {
	store Store
	mtr   *metrics.Registry
}

// NewServer wraps store as an HTTP handler set.
func NewServer(store Store) *Server {
	return &Server{store: store}
}

// WithMetrics records lookup hit/miss counts into m.
func (s *Server) WithMetrics(m *metrics.Registry) *Server {
	s.mtr = m
	return s
}

func (s *Server) countLookup(outcome string) {
	if s.mtr != nil {
		s.mtr.RegistryLookups.WithLabelValues(outcome).Inc()
	}
}

// ServeGET implements both "GET file @ Registry" (lookup) and
// "GET / @ Registry" (list), dispatched by path.
func (s *Server) ServeGET(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.URL.Path == "/" {
		entries, err := s.store.List(ctx)
		if err != nil {
			writeErr(w, err)
			return
		}
		var b strings.Builder
		for _, e := range entries {
			b.WriteString(e.Directory)
			b.WriteByte('=')
			b.WriteString(e.Endpoint.String())
			b.WriteByte('\n')
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(b.String()))
		return
	}

	ep, err := s.store.Lookup(ctx, r.URL.Path)
	if err != nil {
		s.countLookup("miss")
		writeErr(w, err)
		return
	}
	s.countLookup("hit")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ep.String()))
}

// ServePOST implements "POST dir @ Registry" (register) and
// "POST / @ Registry" (register_batch).
func (s *Server) ServePOST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		writeErr(w, dfserr.NewBadRequestError("malformed form body"))
		return
	}
	srv := r.PostForm.Get("srv")
	if srv == "" {
		writeErr(w, dfserr.NewBadRequestError("srv is required"))
		return
	}
	ep, err := ParseEndpoint(srv)
	if err != nil {
		writeErr(w, dfserr.NewBadRequestError(err.Error()))
		return
	}

	if r.URL.Path == "/" {
		dirsRaw := r.PostForm.Get("dirs")
		if dirsRaw == "" {
			writeErr(w, dfserr.NewBadRequestError("dirs is required"))
			return
		}
		dirs := strings.Split(dirsRaw, "\n")
		if err := s.store.RegisterBatch(ctx, dirs, ep); err != nil {
			writeErr(w, err)
			return
		}
		logger.Info("registry: batch registered", logger.Endpoint(ep.String()), logger.Bytes(len(dirs)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	if err := s.store.Register(ctx, r.URL.Path, ep); err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("registry: registered", logger.Directory(r.URL.Path), logger.Endpoint(ep.String()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ServeDELETE implements "DELETE dir @ Registry" (deregister).
func (s *Server) ServeDELETE(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// r.ParseForm only reads the body of POST, PUT and PATCH requests,
	// so the DELETE form body is decoded here.
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeErr(w, dfserr.NewBadRequestError("malformed form body"))
		return
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		writeErr(w, dfserr.NewBadRequestError("malformed form body"))
		return
	}
	srv := form.Get("srv")
	if srv == "" {
		writeErr(w, dfserr.NewBadRequestError("srv is required"))
		return
	}
	ep, err := ParseEndpoint(srv)
	if err != nil {
		writeErr(w, dfserr.NewBadRequestError(err.Error()))
		return
	}
	if err := s.store.Deregister(ctx, r.URL.Path, ep); err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("registry: deregistered", logger.Directory(r.URL.Path), logger.Endpoint(ep.String()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if derr, ok := err.(*dfserr.Error); ok {
		status = derr.Code.HTTPStatus()
	}
	w.WriteHeader(status)
	if status != http.StatusNoContent {
		_, _ = w.Write([]byte(strings.TrimSpace(err.Error())))
	}
}
