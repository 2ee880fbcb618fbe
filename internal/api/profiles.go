package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/banshee-data/seamprofile/internal/httputil"
	"github.com/banshee-data/seamprofile/internal/monitoring"
	"github.com/banshee-data/seamprofile/internal/profiledb"
	"github.com/banshee-data/seamprofile/internal/profilestore"
	"github.com/banshee-data/seamprofile/internal/seam"
)

// SwitchResponse reports the current profile after a load, switch or
// restore.
type SwitchResponse struct {
	CurrentID int32                 `json:"current_id"`
	Profile   profilestore.MetaOnly `json:"profile"`
}

// ImportResponse reports how many profiles an import registered.
type ImportResponse struct {
	Imported int     `json:"imported"`
	IDs      []int32 `json:"ids"`
}

func (s *Server) switchResponse(p *seam.Profile) SwitchResponse {
	return SwitchResponse{CurrentID: s.store.CurrentID(), Profile: profilestore.MetaOf(p)}
}

// handleProfiles dumps the enabled profiles. Repeated id values narrow the
// dump; meta_only=true leaves out the registers.
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ids, err := profileIDs(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	metaOnly, _ := strconv.ParseBool(r.URL.Query().Get("meta_only"))
	if metaOnly {
		httputil.WriteJSONOK(w, s.store.MetaOnly(ids...))
		return
	}
	httputil.WriteJSONOK(w, s.store.Bundle(ids...))
}

// handleCurrent returns the current profile on GET. PUT fills the current
// profile in place from a profile document.
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		if !s.fillCurrent(w, r) {
			return
		}
	default:
		httputil.MethodNotAllowed(w)
		return
	}

	snap, err := s.store.Snapshot()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, seam.DocumentOf(snap))
}

func (s *Server) fillCurrent(w http.ResponseWriter, r *http.Request) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("read body: %v", err))
		return false
	}
	doc, err := seam.DecodeDocument(data)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return false
	}
	src, err := doc.Build()
	if err != nil {
		httputil.UnprocessableEntity(w, err.Error())
		return false
	}
	if err := s.store.Fill(src); err != nil {
		writeStoreError(w, err)
		return false
	}
	return true
}

// handleLoad reads a profile from storage into the bank. With
// switch=true it also becomes current.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	id, err := profileID(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	p, err := s.store.Load(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if sw, _ := strconv.ParseBool(r.FormValue("switch")); sw {
		if err := s.store.Switch(id); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	httputil.WriteJSONOK(w, s.switchResponse(p))
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	id, err := profileID(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.store.Switch(id); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.switchResponse(s.store.Current()))
}

func (s *Server) handleEnable(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		if r.FormValue("all") == "true" {
			if on {
				s.store.EnableAll()
			} else {
				s.store.DisableAll()
			}
			httputil.WriteJSONOK(w, s.store.MetaOnly())
			return
		}
		id, err := profileID(r)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if on {
			err = s.store.Enable(id)
		} else {
			err = s.store.Disable(id)
		}
		if err != nil {
			writeStoreError(w, err)
			return
		}
		p, err := s.store.Get(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		httputil.WriteJSONOK(w, profilestore.MetaOf(p))
	}
}

// handleSave persists one loaded profile, or every loaded profile when no
// id is given.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if r.FormValue("id") == "" {
		if err := s.store.SaveAll(r.Context()); err != nil {
			writeStoreError(w, err)
			return
		}
		httputil.WriteJSONOK(w, map[string][]int32{"saved": s.store.IDs()})
		return
	}
	id, err := profileID(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.store.Save(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string][]int32{"saved": {id}})
}

// handleImport registers the profiles of a document or bundle body
// without touching storage or the current profile.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	before := s.store.IDs()
	n, err := s.store.ImportJSON(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	monitoring.Logf("imported %d profiles over http (%d loaded before)", n, len(before))
	httputil.WriteJSONOK(w, ImportResponse{Imported: n, IDs: s.store.IDs()})
}

func (s *Server) handleRevisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.history == nil {
		httputil.NotFound(w, "this backend keeps no revision history")
		return
	}
	id, err := profileID(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	revs, err := s.history.Revisions(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if revs == nil {
		revs = []profiledb.Revision{}
	}
	httputil.WriteJSONOK(w, revs)
}

// handleRestore writes an old revision back to storage and reloads it.
// When the restored profile is current, the reloaded copy is switched in.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.history == nil {
		httputil.NotFound(w, "this backend keeps no revision history")
		return
	}
	rev := r.FormValue("revision")
	if rev == "" {
		httputil.BadRequest(w, "missing 'revision' parameter")
		return
	}
	doc, err := s.history.Restore(r.Context(), rev)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	p, err := s.store.Load(r.Context(), doc.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if s.store.CurrentID() == doc.ID {
		if err := s.store.Switch(doc.ID); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	monitoring.Logf("restored profile %d from revision %s", doc.ID, rev)
	httputil.WriteJSONOK(w, s.switchResponse(p))
}
