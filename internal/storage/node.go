package storage

import (
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/lease"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/registry"
)

// Node is the Storage Node: a whitelist of served directories, a
// content Backend, and the Lease Manager it delegates write
// authorization to.
type Node struct {
	backend Backend
	leases  lease.Manager
	served  map[string]struct{}
}

// New constructs a Node serving exactly the directories in servedDirs.
func New(backend Backend, leases lease.Manager, servedDirs []string) *Node {
	served := make(map[string]struct{}, len(servedDirs))
	for _, d := range servedDirs {
		norm, err := registry.NormalizeDir(d)
		if err != nil {
			continue
		}
		served[norm] = struct{}{}
	}
	return &Node{backend: backend, leases: leases, served: served}
}

// Servable reports whether path's parent directory is in the node's
// served-directories whitelist.
func (n *Node) Servable(path string) bool {
	_, ok := n.served[registry.DirOf(path)]
	return ok
}

// ServedDirectories returns the whitelist in sorted order, the shape
// used to announce this node to the Directory Registry at startup.
func (n *Node) ServedDirectories() []string {
	out := make([]string, 0, len(n.served))
	for d := range n.served {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// lastModifiedHeader renders the cache-validation token. It keeps the
// sub-second part of the modification time, so two writes within the same
// second produce different tokens.
func lastModifiedHeader(info Info) string {
	return info.LastModified.UTC().Format(time.RFC3339Nano)
}

func parseLeaseID(r *http.Request) *lease.ID {
	raw := r.URL.Query().Get("lock_id")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil
	}
	id := lease.ID(v)
	return &id
}

// ServeGET serves a whole file: 200+body+Last-Modified on success;
// 204 missing, 401 locked, 406 not servable.
func (n *Node) ServeGET(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	ctx := r.Context()

	if !n.Servable(path) {
		writeErr(w, dfserr.NewNotAcceptableError(path))
		return
	}
	if err := n.leases.Check(ctx, path, parseLeaseID(r)); err != nil {
		writeErr(w, dfserr.NewUnauthorizedError(path))
		return
	}
	info, err := n.backend.Stat(ctx, path)
	if err != nil {
		if dfserr.Is(err, dfserr.NotFound) {
			writeErr(w, dfserr.NewNoContentError(path))
			return
		}
		writeErr(w, err)
		return
	}
	body, err := n.backend.Read(ctx, path)
	if err != nil {
		writeErr(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Last-Modified", lastModifiedHeader(info))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		logger.Error("storage node: write response body", logger.Err(err), logger.Path(path))
	}
}

// ServeHEAD implements the cache-validation primitive: same
// preconditions as GET, no body.
func (n *Node) ServeHEAD(w http.ResponseWriter, r *http.Request) {
	n.ServeGET(w, r)
}

// ServePUT replaces a file's contents: 200+Last-Modified on success;
// 401, 406 on failure.
func (n *Node) ServePUT(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	ctx := r.Context()

	if !n.Servable(path) {
		writeErr(w, dfserr.NewNotAcceptableError(path))
		return
	}
	if err := n.leases.Check(ctx, path, parseLeaseID(r)); err != nil {
		writeErr(w, dfserr.NewUnauthorizedError(path))
		return
	}
	if err := n.backend.Write(ctx, path, r.Body); err != nil {
		writeErr(w, dfserr.NewInternalError(err.Error()))
		return
	}
	info, err := n.backend.Stat(ctx, path)
	if err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("storage node: wrote file", logger.Path(path), logger.Bytes(int(info.Size)))
	w.Header().Set("Last-Modified", lastModifiedHeader(info))
	w.WriteHeader(http.StatusOK)
}

// ServeDELETE removes a file: 200+OK; 401, 406, 204 on failure (204
// when the file never existed).
func (n *Node) ServeDELETE(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	ctx := r.Context()

	if !n.Servable(path) {
		writeErr(w, dfserr.NewNotAcceptableError(path))
		return
	}
	exists, err := n.backend.Exists(ctx, path)
	if err != nil {
		writeErr(w, dfserr.NewInternalError(err.Error()))
		return
	}
	if !exists {
		writeErr(w, dfserr.NewNoContentError(path))
		return
	}
	if err := n.leases.Check(ctx, path, parseLeaseID(r)); err != nil {
		writeErr(w, dfserr.NewUnauthorizedError(path))
		return
	}
	if err := n.backend.Delete(ctx, path); err != nil {
		writeErr(w, dfserr.NewInternalError(err.Error()))
		return
	}
	logger.Info("storage node: deleted file", logger.Path(path))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeErr(w http.ResponseWriter, err error) {
	var status int
	if derr, ok := err.(*dfserr.Error); ok {
		status = derr.Code.HTTPStatus()
	} else {
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
	if status != http.StatusNoContent {
		_, _ = w.Write([]byte(strings.TrimSpace(err.Error())))
	}
}
