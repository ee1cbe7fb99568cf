package srs

import (
	"context"
	"encoding/json"
	"go/types"
	"net/http"
	"strconv"
	"time"

	"goji.io/pat"

	"github.com/spmlab/goinst/server"
)

// HTTPWrapper provides HTTP bindings on top of the underlying Go interface
type HTTPWrapper struct {
	// Amp is the underlying lock-in that is wrapped
	Amp *SR830

	// RouteTable maps goji patterns to http handlers
	RouteTable server.RouteTable
}

// NewHTTPWrapper returns a new HTTP wrapper with the route table pre-configured
func NewHTTPWrapper(amp *SR830) HTTPWrapper {
	w := HTTPWrapper{Amp: amp}
	rt := server.RouteTable{
		pat.Get("/freq"):         w.Frequency,
		pat.Get("/aux-in/:n"):    w.AuxIn,
		pat.Post("/aux-out/:n"):  w.SetAuxOut,
		pat.Get("/sensitivity"):  w.Sensitivity,
		pat.Post("/sensitivity"): w.SetSensitivity,
		pat.Get("/status"):       w.Status,
		pat.Get("/snap"):         w.Snapshot,
		pat.Get("/auto-measure"): w.AutoMeasure,
	}
	w.RouteTable = rt
	return w
}

// RT satisfies server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}

// Frequency returns the reference frequency in Hz
func (h HTTPWrapper) Frequency(w http.ResponseWriter, r *http.Request) {
	f, err := h.Amp.Frequency()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.Float64, Float: f}
	hp.EncodeAndRespond(w, r)
}

// AuxIn reads one auxiliary input voltage
func (h HTTPWrapper) AuxIn(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(pat.Param(r, "n"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := h.Amp.AuxIn(n)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.Float64, Float: f}
	hp.EncodeAndRespond(w, r)
}

// SetAuxOut writes one auxiliary output voltage
func (h HTTPWrapper) SetAuxOut(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(pat.Param(r, "n"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f := server.FloatT{}
	err = json.NewDecoder(r.Body).Decode(&f)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.Amp.SetAuxOut(n, f.F64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Sensitivity returns the sensitivity index
func (h HTTPWrapper) Sensitivity(w http.ResponseWriter, r *http.Request) {
	s, err := h.Amp.Sensitivity()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.Int, Int: int(s)}
	hp.EncodeAndRespond(w, r)
}

// SetSensitivity writes the sensitivity index
func (h HTTPWrapper) SetSensitivity(w http.ResponseWriter, r *http.Request) {
	i := server.IntT{}
	err := json.NewDecoder(r.Body).Decode(&i)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.Amp.SetSensitivity(Sensitivity(i.Int))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Status returns the decoded status register as JSON
func (h HTTPWrapper) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.Amp.Status()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(st)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Snapshot returns one atomic six-channel reading as JSON
func (h HTTPWrapper) Snapshot(w http.ResponseWriter, r *http.Request) {
	rd, err := h.Amp.Snapshot()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(rd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// AutoMeasure runs the auto-ranging protocol bounded by the request context
func (h HTTPWrapper) AutoMeasure(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()
	rd, err := h.Amp.AutoMeasure(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(rd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
