package instrerr_test

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/spmlab/goinst/instrerr"
)

func TestCodeOfNil(t *testing.T) {
	if c := instrerr.CodeOf(nil); c != instrerr.Ok {
		t.Errorf("expected Ok for nil error, got %s", c)
	}
}

func TestCodeOfForeignError(t *testing.T) {
	if c := instrerr.CodeOf(errors.New("something else")); c != instrerr.Unspecified {
		t.Errorf("expected Unspecified for a non-taxonomy error, got %s", c)
	}
}

func TestCodeOfWrapped(t *testing.T) {
	inner := instrerr.FromRaw(instrerr.DeviceLocked, 7, "anc350.Connect")
	outer := errors.Wrap(inner, "bring-up failed")
	if c := instrerr.CodeOf(outer); c != instrerr.DeviceLocked {
		t.Errorf("expected DeviceLocked through a wrap, got %s", c)
	}
}

func TestErrorStringCarriesRawCode(t *testing.T) {
	e := instrerr.FromRaw(instrerr.Timeout, 1, "anc350.GetPosition")
	s := e.Error()
	if s != "anc350.GetPosition: TIMEOUT (raw code 1)" {
		t.Errorf("unexpected error string %q", s)
	}
}

func TestUnknownCodeStillPrints(t *testing.T) {
	c := instrerr.Code(999)
	if c.String() != "CODE(999)" {
		t.Errorf("unexpected string for unknown code: %s", c)
	}
}
