package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/seamprofile/internal/httputil"
	"github.com/banshee-data/seamprofile/internal/seam"
)

// RegisterView shows one register under both typed views. Float is a
// string so NaN and infinities survive JSON.
type RegisterView struct {
	Index     int    `json:"index"`
	Partition string `json:"partition"`
	Local     int    `json:"local"`
	Hex       string `json:"hex"`
	Int       int32  `json:"int"`
	Float     string `json:"float"`
	Enabled   *bool  `json:"enabled,omitempty"`
	Reserved  bool   `json:"reserved,omitempty"`
}

// RegistersResponse is the register listing of one profile.
type RegistersResponse struct {
	ProfileID      int32          `json:"profile_id"`
	JointType      int32          `json:"joint_type"`
	JointTypeMajor int32          `json:"joint_type_major"`
	JointTypeMinor int32          `json:"joint_type_minor"`
	Version        int32          `json:"version"`
	Registers      []RegisterView `json:"registers"`
}

// RegisterWrite sets one register of the current profile. Exactly one of
// Int and Float must be given. The register is addressed either by flat
// Index or by Partition and Local.
type RegisterWrite struct {
	Index     *int     `json:"index,omitempty"`
	Partition string   `json:"partition,omitempty"`
	Local     int      `json:"local,omitempty"`
	Int       *int32   `json:"int,omitempty"`
	Float     *float32 `json:"float,omitempty"`
}

func (rw RegisterWrite) flat() (int, error) {
	if rw.Index != nil {
		if rw.Partition != "" {
			return 0, errors.New("give either index or partition, not both")
		}
		return *rw.Index, nil
	}
	if rw.Partition == "" {
		return 0, errors.New("missing index or partition")
	}
	p, err := seam.ParsePartition(rw.Partition)
	if err != nil {
		return 0, err
	}
	return p.Flat(rw.Local)
}

func viewOf(t *seam.Table, flat int, masks map[seam.Partition]int64) (RegisterView, error) {
	r, err := t.Get(flat)
	if err != nil {
		return RegisterView{}, err
	}
	p, local, err := seam.Locate(flat)
	if err != nil {
		return RegisterView{}, err
	}
	v := RegisterView{
		Index:     flat,
		Partition: p.String(),
		Local:     local,
		Hex:       fmt.Sprintf("0x%08X", uint32(r)),
		Int:       r.Int(),
		Float:     strconv.FormatFloat(float64(r.Float()), 'g', -1, 32),
		Reserved:  seam.IsReserved(flat),
	}
	if mask, ok := masks[p]; ok {
		on := mask>>uint(local)&1 == 1
		v.Enabled = &on
	}
	return v, nil
}

// enableMasks decodes each partition's mask once so a listing reads the
// SF registers a single time.
func enableMasks(t *seam.Table) map[seam.Partition]int64 {
	masks := make(map[seam.Partition]int64)
	for _, p := range seam.Partitions() {
		if m, err := t.EnableMask(p); err == nil {
			masks[p] = m
		}
	}
	return masks
}

func (s *Server) handleRegisters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRegisters(w, r)
	case http.MethodPost:
		s.writeRegister(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// listRegisters shows the registers of the current profile, or of the
// loaded profile named by id. partition narrows the listing.
func (s *Server) listRegisters(w http.ResponseWriter, r *http.Request) {
	var (
		p   *seam.Profile
		err error
	)
	if r.URL.Query().Get("id") != "" {
		id, perr := profileID(r)
		if perr != nil {
			httputil.BadRequest(w, perr.Error())
			return
		}
		if p, err = s.store.Get(id); err == nil {
			p = p.Clone()
		}
	} else {
		p, err = s.store.Snapshot()
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}

	first, end := 0, seam.NumRegisters
	if name := r.URL.Query().Get("partition"); name != "" {
		part, err := seam.ParsePartition(name)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		first, end = part.Base(), part.Base()+part.Capacity()
	}

	t := p.Table()
	masks := enableMasks(t)
	resp := RegistersResponse{
		ProfileID:      p.ID(),
		JointType:      t.JointType(),
		JointTypeMajor: t.JointTypeMajor(),
		JointTypeMinor: t.JointTypeMinor(),
		Version:        t.Version(),
		Registers:      make([]RegisterView, 0, end-first),
	}
	for i := first; i < end; i++ {
		v, err := viewOf(t, i, masks)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		resp.Registers = append(resp.Registers, v)
	}
	httputil.WriteJSONOK(w, resp)
}

// writeRegister stores one value into the current profile in place.
func (s *Server) writeRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterWrite
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if (req.Int == nil) == (req.Float == nil) {
		httputil.BadRequest(w, "give exactly one of int or float")
		return
	}
	flat, err := req.flat()
	if err != nil {
		writeStoreError(w, fmt.Errorf("%w: %w", seam.ErrIndexOutOfRange, err))
		return
	}

	var view RegisterView
	err = s.store.WithCurrent(func(p *seam.Profile) error {
		t := p.Table()
		var err error
		if req.Int != nil {
			err = t.SetInt(flat, *req.Int)
		} else {
			err = t.SetFloat(flat, *req.Float)
		}
		if err != nil {
			return err
		}
		view, err = viewOf(t, flat, enableMasks(t))
		return err
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, view)
}
