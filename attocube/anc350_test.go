package attocube

import (
	"strings"
	"testing"

	"github.com/spmlab/goinst/instrerr"
	"github.com/spmlab/goinst/warn"
)

func newDriver(t *testing.T, m *Mock) *ANC350 {
	t.Helper()
	a, err := New(m)
	if err != nil {
		t.Fatal("bring-up failed:", err)
	}
	a.Notify = warn.Discard
	return a
}

func TestBringUpEnablesEveryAxisAnchored(t *testing.T) {
	m := NewMock()
	m.Positions = [NumAxes]float64{100, -250, 0}
	a := newDriver(t, m)

	for axis := 0; axis < NumAxes; axis++ {
		mode, err := a.Mode(axis)
		if err != nil {
			t.Fatal(err)
		}
		if mode != ModeServoTracking {
			t.Errorf("axis %d expected servo-tracking after bring-up, got %s", axis, mode)
		}
	}
	if len(m.AutoMoves) != NumAxes {
		t.Fatalf("expected %d auto-move calls, got %d", NumAxes, len(m.AutoMoves))
	}
	if len(m.Targets) != NumAxes {
		t.Fatalf("expected %d anchoring target writes, got %d", NumAxes, len(m.Targets))
	}
	for axis := 0; axis < NumAxes; axis++ {
		if m.Targets[axis].Target != m.Positions[axis] {
			t.Errorf("axis %d anchored to %f, expected current position %f",
				axis, m.Targets[axis].Target, m.Positions[axis])
		}
	}
}

func TestBringUpRejectsWrongDeviceCount(t *testing.T) {
	for _, count := range []int{0, 2} {
		m := NewMock()
		m.DeviceCount = count
		_, err := New(m)
		if instrerr.CodeOf(err) != instrerr.DeviceCountMismatch {
			t.Errorf("count %d: expected DeviceCountMismatch, got %v", count, err)
		}
	}
}

func TestEnableServoAnchorsToCurrentPosition(t *testing.T) {
	m := NewMock()
	a := newDriver(t, m)
	m.Positions[1] = 4321
	m.Targets = nil

	if err := a.EnableServo(1); err != nil {
		t.Fatal(err)
	}
	if len(m.Targets) != 1 {
		t.Fatalf("expected exactly one target write, got %d", len(m.Targets))
	}
	if m.Targets[0].Target != 4321 {
		t.Errorf("first target write was %f, expected the echoed position 4321", m.Targets[0].Target)
	}
}

func TestMoveToForwardsPositionPlusOffset(t *testing.T) {
	m := NewMock()
	a := newDriver(t, m)
	z := [NumAxes]float64{500, -300, 12.5}
	if err := a.SetZero(z); err != nil {
		t.Fatal(err)
	}
	m.Targets = nil

	p := 2.0 // micrometers
	for axis := 0; axis < NumAxes; axis++ {
		if err := a.MoveTo(axis, p); err != nil {
			t.Fatal(err)
		}
	}
	for axis := 0; axis < NumAxes; axis++ {
		expected := p*1000 + z[axis]
		if m.Targets[axis].Target != expected {
			t.Errorf("axis %d forwarded target %f, expected %f", axis, m.Targets[axis].Target, expected)
		}
	}
}

func TestPositionSubtractsOffsetAndScales(t *testing.T) {
	m := NewMock()
	a := newDriver(t, m)
	if err := a.SetZero([NumAxes]float64{1000, 0, 0}); err != nil {
		t.Fatal(err)
	}
	m.Positions[0] = 3500
	p, err := a.Position(0)
	if err != nil {
		t.Fatal(err)
	}
	if p != 2.5 {
		t.Errorf("expected (3500-1000)/1000 = 2.5 um, got %f", p)
	}
}

func TestSetZeroHereCapturesRawPositions(t *testing.T) {
	m := NewMock()
	a := newDriver(t, m)
	m.Positions = [NumAxes]float64{10, 20, 30}
	if err := a.SetZeroHere(); err != nil {
		t.Fatal(err)
	}
	if a.ZeroOffsets() != m.Positions {
		t.Errorf("expected offsets %v, got %v", m.Positions, a.ZeroOffsets())
	}
}

func TestDirectVoltageDisablesServoFirstWithOneWarning(t *testing.T) {
	m := NewMock()
	a := newDriver(t, m)
	var warnings []warn.Warning
	a.Notify = warn.Collector(&warnings)
	m.AutoMoves = nil

	if err := a.SetDirectVoltage(0, 5); err != nil {
		t.Fatal(err)
	}
	if len(m.AutoMoves) != 1 || m.AutoMoves[0].Enable {
		t.Fatalf("expected exactly one servo-disable before the voltage, got %v", m.AutoMoves)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one advisory, got %d: %v", len(warnings), warnings)
	}
	mode, _ := a.Mode(0)
	if mode != ModeDirectVoltage {
		t.Errorf("expected direct-voltage mode, got %s", mode)
	}
	if m.Voltages[0] != 5 {
		t.Errorf("in-range voltage should pass through unchanged, device saw %f", m.Voltages[0])
	}
}

func TestDirectVoltageClamping(t *testing.T) {
	cases := []struct {
		input   float64
		device  float64
		signals int
	}{
		{-15, -10, 1},
		{63, 60, 1},
		{5, 5, 0},
		{60.05, 60, 0}, // inside the rounding guard, clamps silently
		{-10.05, -10, 0},
	}
	for _, tc := range cases {
		m := NewMock()
		a := newDriver(t, m)
		var warnings []warn.Warning
		a.Notify = warn.Collector(&warnings)

		// leave servo-tracking first so the forced-disable advisory does
		// not mix into the clamp count
		if err := a.SetDirectVoltage(2, 0); err != nil {
			t.Fatal(err)
		}
		warnings = nil

		if err := a.SetDirectVoltage(2, tc.input); err != nil {
			t.Fatal(err)
		}
		if m.Voltages[2] != tc.device {
			t.Errorf("input %f: device saw %f, expected %f", tc.input, m.Voltages[2], tc.device)
		}
		if len(warnings) != tc.signals {
			t.Errorf("input %f: expected %d advisories, got %d", tc.input, tc.signals, len(warnings))
		}
	}
}

func TestMoveToWhileDisabledWarnsButStillSends(t *testing.T) {
	m := NewMock()
	a := newDriver(t, m)
	if err := a.SetDirectVoltage(1, 0); err != nil { // drops axis 1 out of tracking
		t.Fatal(err)
	}
	var warnings []warn.Warning
	a.Notify = warn.Collector(&warnings)
	m.Targets = nil

	if err := a.MoveTo(1, 1.0); err != nil {
		t.Fatal(err)
	}
	if len(m.Targets) != 1 {
		t.Fatal("target write should still reach the device")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Detail, "servo is off") {
		t.Errorf("expected one servo-off advisory, got %v", warnings)
	}
}

func TestAxisBoundsArePreconditions(t *testing.T) {
	m := NewMock()
	a := newDriver(t, m)
	if err := a.SetDirectVoltage(NumAxes, 1); instrerr.CodeOf(err) != instrerr.PreconditionViolation {
		t.Errorf("expected PreconditionViolation for axis %d, got %v", NumAxes, err)
	}
	if _, err := a.Position(-1); instrerr.CodeOf(err) != instrerr.PreconditionViolation {
		t.Errorf("expected PreconditionViolation for axis -1, got %v", err)
	}
}

func TestUnknownRawCodeMapsToUnspecified(t *testing.T) {
	err := Error(42, "anc350.GetPosition")
	if instrerr.CodeOf(err) != instrerr.Unspecified {
		t.Errorf("expected Unspecified for raw code 42, got %v", err)
	}
}

func TestKnownRawCodeMapping(t *testing.T) {
	cases := map[int]instrerr.Code{
		ancTimeout:      instrerr.Timeout,
		ancNotConnected: instrerr.NotConnected,
		ancDriverError:  instrerr.DriverAccessError,
		ancDeviceLocked: instrerr.DeviceLocked,
		ancNoDevice:     instrerr.NoSuchDevice,
		ancNoAxis:       instrerr.NoSuchAxis,
		ancOutOfRange:   instrerr.OutOfRange,
		ancNotAvailable: instrerr.UnsupportedOperation,
		ancFileError:    instrerr.FileError,
	}
	for raw, code := range cases {
		if got := instrerr.CodeOf(Error(raw, "op")); got != code {
			t.Errorf("raw %d: expected %s, got %s", raw, code, got)
		}
	}
}

func TestPollStatusIsAllOrNothing(t *testing.T) {
	m := NewMock()
	a := newDriver(t, m)
	m.Statuses[1].Moving = 1
	m.Statuses[2].EotFwd = 1

	s, err := a.PollStatus()
	if err != nil {
		t.Fatal(err)
	}
	if !s.Moving[1] || !s.EndOfTravelFwd[2] {
		t.Error("snapshot did not reflect per-axis flags")
	}

	m.Fail["GetAxisStatus"] = ancTimeout
	s, err = a.PollStatus()
	if instrerr.CodeOf(err) != instrerr.Timeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if s != (Status{}) {
		t.Error("failed poll must not return a partial snapshot")
	}
}

func TestCloseReleasesExactlyOnceAndSurfacesFailure(t *testing.T) {
	m := NewMock()
	a := newDriver(t, m)
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Error("second close at the driver boundary should be a no-op, got", err)
	}
	if m.Disconnected != 1 {
		t.Errorf("expected exactly one disconnect, got %d", m.Disconnected)
	}
	if err := a.EnableServo(0); instrerr.CodeOf(err) != instrerr.NotConnected {
		t.Errorf("expected NotConnected after close, got %v", err)
	}
	if _, err := a.Mode(0); instrerr.CodeOf(err) != instrerr.NotConnected {
		t.Errorf("Mode after close must not report the stale cached mode, got %v", err)
	}

	m2 := NewMock()
	b := newDriver(t, m2)
	m2.Fail["Disconnect"] = ancDriverError
	if err := b.Close(); instrerr.CodeOf(err) != instrerr.DriverAccessError {
		t.Errorf("release failure must surface, got %v", err)
	}
}

func TestFailedBringUpReleasesHandle(t *testing.T) {
	m := NewMock()
	m.Fail["StartAutoMove"] = ancNotAvailable
	_, err := New(m)
	if instrerr.CodeOf(err) != instrerr.UnsupportedOperation {
		t.Fatalf("expected the bring-up failure to surface, got %v", err)
	}
	if m.Disconnected != 1 {
		t.Errorf("expected 1 disconnect after failed bring-up, got %d", m.Disconnected)
	}

	// a release failure on that path rides along with the bring-up error
	m2 := NewMock()
	m2.Fail["StartAutoMove"] = ancNotAvailable
	m2.Fail["Disconnect"] = ancDriverError
	_, err = New(m2)
	if instrerr.CodeOf(err) != instrerr.UnsupportedOperation {
		t.Fatalf("bring-up failure must stay the primary error, got %v", err)
	}
	if !strings.Contains(err.Error(), "DRIVER_ACCESS_ERROR") {
		t.Errorf("release failure not surfaced alongside bring-up error: %v", err)
	}
}

func TestEnableFailureLeavesStateUnchanged(t *testing.T) {
	m := NewMock()
	a := newDriver(t, m)
	if err := a.SetDirectVoltage(0, 0); err != nil {
		t.Fatal(err)
	}
	m.Fail["StartAutoMove"] = ancNotAvailable
	err := a.EnableServo(0)
	if instrerr.CodeOf(err) != instrerr.UnsupportedOperation {
		t.Fatalf("expected UnsupportedOperation, got %v", err)
	}
	mode, _ := a.Mode(0)
	if mode != ModeDirectVoltage {
		t.Errorf("failed enable must not change mode, got %s", mode)
	}
}
