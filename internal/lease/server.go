package lease

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/metrics"
)

// Server exposes a Manager over HTTP: GET for check/dump, POST for
// grant/grant_batch, DELETE for revoke/revoke_batch.
type Server struct {
	mgr Manager
	mtr *metrics.Registry
}

// NewServer wraps mgr as an HTTP handler set.
func NewServer(mgr Manager) *Server {
	return &Server{mgr: mgr}
}

// WithMetrics records grant/conflict/revocation counts into m.
func (s *Server) WithMetrics(m *metrics.Registry) *Server {
	s.mtr = m
	return s
}

func (s *Server) countGrant(outcome string) {
	if s.mtr != nil {
		s.mtr.LeaseGrants.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countConflict(reason string) {
	if s.mtr != nil {
		s.mtr.LeaseConflicts.WithLabelValues(reason).Inc()
	}
}

func (s *Server) countRevocation() {
	if s.mtr != nil {
		s.mtr.LeaseRevocations.Inc()
	}
}

func parseLockID(r *http.Request) *ID {
	raw := r.URL.Query().Get("lock_id")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil
	}
	id := ID(v)
	return &id
}

// ServeGET implements "GET file @ Lease" (check) and "GET / @ Lease" (dump).
func (s *Server) ServeGET(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.URL.Path == "/" {
		records, err := s.mgr.Dump(ctx)
		if err != nil {
			writeErr(w, err)
			return
		}
		var b strings.Builder
		for _, rec := range records {
			b.WriteString(rec.Path)
			b.WriteByte('=')
			b.WriteString(rec.GrantedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"))
			b.WriteByte(',')
			b.WriteString(rec.LastUsedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"))
			b.WriteByte('\n')
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(b.String()))
		return
	}

	id := parseLockID(r)
	if err := s.mgr.Check(ctx, r.URL.Path, id); err != nil {
		if dfserr.Is(err, dfserr.Conflict) {
			if id != nil {
				s.countConflict("wrong_id")
			} else {
				s.countConflict("held")
			}
		}
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ServePOST implements "POST file @ Lease" (grant) and "POST / @ Lease"
// (grant_batch).
func (s *Server) ServePOST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.URL.Path == "/" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeErr(w, dfserr.NewUnauthorizedError("batch grant"))
			return
		}
		// One correlation id per batch call, logged on the batch's outcome
		// line (granted or denied). The per-path grant and rollback lines
		// written by the manager do not carry it.
		batchID := uuid.NewString()
		paths := strings.Split(strings.TrimSpace(string(body)), "\n")
		granted, err := s.mgr.GrantBatch(ctx, paths)
		if err != nil {
			s.countGrant("denied")
			logger.Warn("lease server: batch grant denied", logger.BatchID(batchID), logger.Err(err))
			writeErr(w, err)
			return
		}
		var b strings.Builder
		for _, p := range paths {
			b.WriteString(p)
			b.WriteByte('=')
			b.WriteString(strconv.FormatUint(uint64(granted[p]), 10))
			b.WriteByte('\n')
		}
		for range paths {
			s.countGrant("granted")
		}
		logger.Info("lease server: batch granted", logger.BatchID(batchID), logger.Bytes(len(paths)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(b.String()))
		return
	}

	id, err := s.mgr.Grant(ctx, r.URL.Path)
	if err != nil {
		s.countGrant("denied")
		writeErr(w, err)
		return
	}
	s.countGrant("granted")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(strconv.FormatUint(uint64(id), 10)))
}

// ServeDELETE implements "DELETE file @ Lease" (revoke) and
// "DELETE / @ Lease" (revoke_batch).
func (s *Server) ServeDELETE(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.URL.Path == "/" {
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
		paths := strings.Split(form.Get("filepaths"), "\n")
		idStrs := strings.Split(form.Get("lock_ids"), "\n")
		if len(paths) != len(idStrs) {
			writeErr(w, dfserr.NewBadRequestError("filepaths and lock_ids must have equal length"))
			return
		}
		ids := make([]ID, len(idStrs))
		for i, idStr := range idStrs {
			v, err := strconv.ParseUint(idStr, 10, 64)
			if err != nil {
				writeErr(w, dfserr.NewBadRequestError("malformed lock_id"))
				return
			}
			ids[i] = ID(v)
		}
		if err := s.mgr.RevokeBatch(ctx, paths, ids); err != nil {
			writeErr(w, err)
			return
		}
		for range paths {
			s.countRevocation()
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	id := parseLockID(r)
	if id == nil {
		writeErr(w, dfserr.NewBadRequestError("lock_id is required"))
		return
	}
	if err := s.mgr.Revoke(ctx, r.URL.Path, *id); err != nil {
		writeErr(w, err)
		return
	}
	s.countRevocation()
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
