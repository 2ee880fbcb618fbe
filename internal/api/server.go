// Package api serves the profile store over HTTP. Handlers follow the
// store's operations one to one: load, switch, fill, enable and save, plus
// dumps, imports and read access to the registers of any loaded profile.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/seamprofile/internal/httputil"
	"github.com/banshee-data/seamprofile/internal/profiledb"
	"github.com/banshee-data/seamprofile/internal/profilestore"
	"github.com/banshee-data/seamprofile/internal/seam"
	"github.com/banshee-data/seamprofile/internal/version"
)

// maxBodySize caps request bodies. A full bundle of 256 profiles is well
// under this.
const maxBodySize = 8 << 20

// History is the revision log of a backend that keeps one. The sqlite
// backend implements it.
type History interface {
	Revisions(ctx context.Context, id int32) ([]profiledb.Revision, error)
	Restore(ctx context.Context, revisionID string) (*seam.Document, error)
}

type Server struct {
	store   *profilestore.Store
	history History
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables the revision routes.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

func NewServer(store *profilestore.Store, opts ...Option) *Server {
	s := &Server{store: store}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ServeMux returns the API routes. Mount it under /api/ with
// http.StripPrefix.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/profiles", s.handleProfiles)
	mux.HandleFunc("/profiles/current", s.handleCurrent)
	mux.HandleFunc("/profiles/load", s.handleLoad)
	mux.HandleFunc("/profiles/switch", s.handleSwitch)
	mux.HandleFunc("/profiles/enable", s.handleEnable(true))
	mux.HandleFunc("/profiles/disable", s.handleEnable(false))
	mux.HandleFunc("/profiles/save", s.handleSave)
	mux.HandleFunc("/profiles/import", s.handleImport)
	mux.HandleFunc("/profiles/revisions", s.handleRevisions)
	mux.HandleFunc("/profiles/restore", s.handleRestore)
	mux.HandleFunc("/registers", s.handleRegisters)
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

// writeStoreError maps store and table errors onto status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, seam.ErrIndexOutOfRange):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, seam.ErrNotStored), errors.Is(err, seam.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, seam.ErrLoadFailed):
		httputil.UnprocessableEntity(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

// profileID reads the required "id" form value.
func profileID(r *http.Request) (int32, error) {
	raw := r.FormValue("id")
	if raw == "" {
		return 0, errors.New("missing 'id' parameter")
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid 'id' parameter %q", raw)
	}
	return int32(id), nil
}

// profileIDs reads zero or more "id" query values.
func profileIDs(r *http.Request) ([]int32, error) {
	var ids []int32
	for _, raw := range r.URL.Query()["id"] {
		id, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid 'id' parameter %q", raw)
		}
		ids = append(ids, int32(id))
	}
	return ids, nil
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}
