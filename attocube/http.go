package attocube

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strconv"

	"goji.io/pat"

	"github.com/spmlab/goinst/server"
)

// HTTPWrapper provides HTTP bindings on top of the underlying Go interface
type HTTPWrapper struct {
	// Positioner is the underlying device that is wrapped
	Positioner *ANC350

	// RouteTable maps goji patterns to http handlers
	RouteTable server.RouteTable
}

// NewHTTPWrapper returns a new HTTP wrapper with the route table pre-configured
func NewHTTPWrapper(a *ANC350) HTTPWrapper {
	w := HTTPWrapper{Positioner: a}
	rt := server.RouteTable{
		pat.Get("/axis/:axis/pos"):    w.Position,
		pat.Post("/axis/:axis/pos"):   w.MoveTo,
		pat.Post("/axis/:axis/servo"): w.EnableServo,
		pat.Post("/axis/:axis/dc-v"):  w.SetDirectVoltage,
		pat.Get("/axis/:axis/dc-v"):   w.Voltage,
		pat.Get("/axis/:axis/mode"):   w.Mode,
		pat.Get("/status"):            w.PollStatus,
		pat.Post("/zero"):             w.SetZeroHere,
		pat.Post("/zero/vector"):      w.SetZero,
	}
	w.RouteTable = rt
	return w
}

// RT satisfies server.HTTPer
func (h HTTPWrapper) RT() server.RouteTable {
	return h.RouteTable
}

func axisParam(r *http.Request) (int, error) {
	return strconv.Atoi(pat.Param(r, "axis"))
}

// Position reads the user-coordinate position of one axis, micrometers
func (h HTTPWrapper) Position(w http.ResponseWriter, r *http.Request) {
	axis, err := axisParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := h.Positioner.Position(axis)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.Float64, Float: p}
	hp.EncodeAndRespond(w, r)
}

// MoveTo commands one axis toward a user-coordinate position, micrometers
func (h HTTPWrapper) MoveTo(w http.ResponseWriter, r *http.Request) {
	axis, err := axisParam(r)
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
	err = h.Positioner.MoveTo(axis, f.F64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// EnableServo switches one axis into servo-tracking mode
func (h HTTPWrapper) EnableServo(w http.ResponseWriter, r *http.Request) {
	axis, err := axisParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.Positioner.EnableServo(axis)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// SetDirectVoltage applies a raw actuation voltage to one axis
func (h HTTPWrapper) SetDirectVoltage(w http.ResponseWriter, r *http.Request) {
	axis, err := axisParam(r)
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
	err = h.Positioner.SetDirectVoltage(axis, f.F64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Voltage reads the DC voltage on one axis
func (h HTTPWrapper) Voltage(w http.ResponseWriter, r *http.Request) {
	axis, err := axisParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, err := h.Positioner.Voltage(axis)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.Float64, Float: v}
	hp.EncodeAndRespond(w, r)
}

// Mode reads the operating mode of one axis as text
func (h HTTPWrapper) Mode(w http.ResponseWriter, r *http.Request) {
	axis, err := axisParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := h.Positioner.Mode(axis)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := server.HumanPayload{T: types.String, String: m.String()}
	hp.EncodeAndRespond(w, r)
}

// PollStatus returns one snapshot of every axis as JSON
func (h HTTPWrapper) PollStatus(w http.ResponseWriter, r *http.Request) {
	s, err := h.Positioner.PollStatus()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(s)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// SetZeroHere re-zeroes the user coordinate system at the present location
func (h HTTPWrapper) SetZeroHere(w http.ResponseWriter, r *http.Request) {
	err := h.Positioner.SetZeroHere()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// SetZero assigns an explicit offset vector, device units (nm)
func (h HTTPWrapper) SetZero(w http.ResponseWriter, r *http.Request) {
	var offsets [NumAxes]float64
	err := json.NewDecoder(r.Body).Decode(&offsets)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.Positioner.SetZero(offsets)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
