// Package server contains the HTTP glue shared by the device wrappers.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"

	"goji.io"
)

// RouteTable maps goji patterns to handlers
type RouteTable map[goji.Pattern]http.HandlerFunc

// HTTPer is a type which can be injected into a goji mux
type HTTPer interface {
	// RT yields the route table for the HTTPer
	RT() RouteTable
}

// Bind attaches every route in the table to the mux
func (rt RouteTable) Bind(m *goji.Mux) {
	for pat, handler := range rt {
		m.HandleFunc(pat, handler)
	}
}

// BuildMux returns a new goji mux with the HTTPer's routes bound
func BuildMux(h HTTPer) *goji.Mux {
	m := goji.NewMux()
	h.RT().Bind(m)
	return m
}

// HumanPayload is a struct containing the basic types drivers reply with.
// T indicates which field is populated.
type HumanPayload struct {
	// T holds the type of data
	T types.BasicKind

	// Bool holds a boolean
	Bool bool

	// Int holds an int
	Int int

	// Float holds a float
	Float float64

	// String holds a string
	String string
}

// EncodeAndRespond converts the humanpayload to a struct like {'f64': 1.234}
// and writes it as JSON to w
func (hp *HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var err error
	switch hp.T {
	case types.Bool:
		err = json.NewEncoder(w).Encode(BoolT{Bool: hp.Bool})
	case types.Int:
		err = json.NewEncoder(w).Encode(IntT{Int: hp.Int})
	case types.Float64:
		err = json.NewEncoder(w).Encode(FloatT{F64: hp.Float})
	case types.String:
		err = json.NewEncoder(w).Encode(StrT{Str: hp.String})
	default:
		http.Error(w, fmt.Sprintf("unknown payload kind %v", hp.T), http.StatusInternalServerError)
		return
	}
	if err != nil {
		fstr := fmt.Sprintf("error encoding payload to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// BoolT is a struct with a single Bool field
type BoolT struct {
	Bool bool `json:"bool"`
}

// IntT is a struct with a single Int field
type IntT struct {
	Int int `json:"int"`
}

// FloatT is a struct with a single F64 field
type FloatT struct {
	F64 float64 `json:"f64"`
}

// StrT is a struct with a single Str field
type StrT struct {
	Str string `json:"str"`
}
