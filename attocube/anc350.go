/*Package attocube provides control of ANC350-class piezo nanopositioners.

The device is reached through a vendor control library rather than a byte
transport; the library surface is abstracted behind the Gateway interface so
the driver logic is testable without hardware.  Every library call returns a
raw integer code which is routed through Error (codes.go) into the uniform
taxonomy before anything else happens.

Each axis is in exactly one of three modes at any time: Disabled,
ServoTracking, or DirectVoltage.  Mode changes are only possible through the
transition methods, which are written so that no transition by itself causes
motion: enabling a servo anchors the target to the current position, and
applying a direct voltage first drops the servo loop (with an advisory to
the caller) rather than fighting it.

The driver owns a mutex and wraps every public operation with it; the
control library has no internal locking and a single handle is a single
shared resource.
*/
package attocube

import (
	"fmt"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/spmlab/goinst/instrerr"
	"github.com/spmlab/goinst/util"
	"github.com/spmlab/goinst/warn"
)

const (
	// NumAxes is the number of physical axes on the positioner
	NumAxes = 3

	// VoltageMin and VoltageMax bound the DC actuation output in volts
	VoltageMin = -10.0
	VoltageMax = 60.0

	// voltageGuard absorbs floating rounding; adjustments within it clamp
	// silently, larger ones raise an advisory
	voltageGuard = 0.1

	// nmPerMicron is the fixed linear scale between user coordinates
	// (micrometers) and device coordinates (nanometers).  The conversion
	// happens only at the target/position boundary.
	nmPerMicron = 1000.0

	// USBInterface is the enumerate filter for USB-attached devices
	USBInterface = 1
)

// AxisMode is the operating mode of one axis
type AxisMode int

const (
	// ModeDisabled means neither the servo loop nor a direct voltage is active
	ModeDisabled AxisMode = iota

	// ModeServoTracking means the axis autonomously drives toward its target
	ModeServoTracking

	// ModeDirectVoltage means a raw actuation voltage bypasses the servo loop
	ModeDirectVoltage
)

func (m AxisMode) String() string {
	switch m {
	case ModeServoTracking:
		return "servo-tracking"
	case ModeDirectVoltage:
		return "direct-voltage"
	default:
		return "disabled"
	}
}

// Status is one all-or-nothing snapshot of every axis, fields are parallel
// arrays indexed by axis.  The per-axis reads composing one snapshot are
// separate library calls, so the snapshot is eventually consistent within
// one poll, not a single instant across axes.
type Status struct {
	Connected      [NumAxes]bool `json:"connected"`
	Enabled        [NumAxes]bool `json:"enabled"`
	Moving         [NumAxes]bool `json:"moving"`
	AtTarget       [NumAxes]bool `json:"atTarget"`
	EndOfTravelFwd [NumAxes]bool `json:"eotFwd"`
	EndOfTravelBwd [NumAxes]bool `json:"eotBwd"`
	Error          [NumAxes]bool `json:"error"`
}

// ANC350 talks to one positioner through a Gateway.  Create instances with
// New; the zero value has no handle and every operation will fail.
type ANC350 struct {
	// Notify receives recoverable-condition signals.  When nil, warnings
	// go to the default logger.
	Notify warn.Handler

	mu     sync.Mutex
	gw     Gateway
	handle int
	closed bool

	modes [NumAxes]AxisMode

	// zero holds the per-axis calibration offsets in device units (nm)
	zero [NumAxes]float64

	// lastPos holds the most recent raw position per axis, device units
	lastPos [NumAxes]float64
}

// New discovers, connects and brings up a positioner.  Discovery must find
// exactly one device, anything else is a DeviceCountMismatch.  Bring-up
// enables the servo loop on every axis with the target anchored to the
// current position, so construction never moves the stage.  A failed
// bring-up releases the handle before returning.
func New(gw Gateway) (*ANC350, error) {
	count, raw := gw.Enumerate(USBInterface)
	if err := Error(raw, "anc350.Enumerate"); err != nil {
		return nil, err
	}
	if count != 1 {
		return nil, instrerr.New(instrerr.DeviceCountMismatch,
			fmt.Sprintf("anc350.Enumerate: found %d devices, need exactly 1", count))
	}
	handle, raw := gw.Connect(0)
	if err := Error(raw, "anc350.Connect"); err != nil {
		return nil, err
	}
	a := &ANC350{gw: gw, handle: handle}
	for axis := 0; axis < NumAxes; axis++ {
		if err := a.enableServo(axis); err != nil {
			// no driver reaches the caller, so the handle must be
			// released here or it is lost
			if raw := gw.Disconnect(handle); raw != ancOk {
				err = errors.Wrapf(err, "releasing the handle after failed bring-up also failed: %v",
					Error(raw, "anc350.Disconnect"))
			}
			return nil, err
		}
	}
	return a, nil
}

func (a *ANC350) notify(op, detail string) {
	h := a.Notify
	if h == nil {
		h = warn.Log
	}
	h(warn.Warning{Device: "anc350", Op: op, Detail: detail})
}

func checkAxis(axis int, op string) error {
	if axis < 0 || axis >= NumAxes {
		return instrerr.New(instrerr.PreconditionViolation,
			fmt.Sprintf("%s: axis %d outside [0, %d)", op, axis, NumAxes))
	}
	return nil
}

func (a *ANC350) checkLive(op string) error {
	if a.closed {
		return instrerr.New(instrerr.NotConnected, op)
	}
	return nil
}

// enableServo is the lock-free core of EnableServo, shared with bring-up.
// The order matters: the current position is captured first, the loop is
// switched on, and the target is immediately anchored to the captured
// position so the enable itself commands no motion.
func (a *ANC350) enableServo(axis int) error {
	pos, raw := a.gw.GetPosition(a.handle, axis)
	if err := Error(raw, "anc350.GetPosition"); err != nil {
		return err
	}
	if raw := a.gw.StartAutoMove(a.handle, axis, true, false); raw != ancOk {
		// state unchanged on failure
		return Error(raw, "anc350.StartAutoMove")
	}
	a.modes[axis] = ModeServoTracking
	a.lastPos[axis] = pos
	if raw := a.gw.SetTargetPosition(a.handle, axis, pos); raw != ancOk {
		return Error(raw, "anc350.SetTargetPosition")
	}
	return nil
}

// EnableServo switches an axis into servo-tracking mode.  Valid from any
// mode; the axis holds its current position afterwards.
func (a *ANC350) EnableServo(axis int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	const op = "anc350.EnableServo"
	if err := a.checkLive(op); err != nil {
		return err
	}
	if err := checkAxis(axis, op); err != nil {
		return err
	}
	return a.enableServo(axis)
}

// SetDirectVoltage applies a raw actuation voltage to an axis.  An axis in
// servo-tracking mode is first dropped out of it, which raises an advisory
// rather than silently overriding the caller's earlier intent.  The voltage
// is clamped to [VoltageMin, VoltageMax]; a clamp beyond the rounding guard
// also raises an advisory.
func (a *ANC350) SetDirectVoltage(axis int, volts float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	const op = "anc350.SetDirectVoltage"
	if err := a.checkLive(op); err != nil {
		return err
	}
	if err := checkAxis(axis, op); err != nil {
		return err
	}
	if a.modes[axis] == ModeServoTracking {
		if raw := a.gw.StartAutoMove(a.handle, axis, false, false); raw != ancOk {
			return Error(raw, "anc350.StartAutoMove")
		}
		a.modes[axis] = ModeDisabled
		a.notify(op, fmt.Sprintf("axis %d servo disabled to apply a direct voltage", axis))
	}
	clamped := util.Clamp(volts, VoltageMin, VoltageMax)
	if math.Abs(clamped-volts) > voltageGuard {
		a.notify(op, fmt.Sprintf("axis %d voltage %g V clamped to %g V", axis, volts, clamped))
	}
	if raw := a.gw.SetDcVoltage(a.handle, axis, clamped); raw != ancOk {
		return Error(raw, "anc350.SetDcVoltage")
	}
	a.modes[axis] = ModeDirectVoltage
	return nil
}

// MoveTo commands an axis toward a user-coordinate position in micrometers.
// The user coordinate origin is defined by the zero offsets; the forwarded
// device target is position*1000 + zeroOffset nanometers, computed only
// here.  If the axis is not in servo-tracking mode the target still reaches
// the device (the hardware accepts the write) but the axis will not move; an
// advisory says so.
func (a *ANC350) MoveTo(axis int, position float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	const op = "anc350.MoveTo"
	if err := a.checkLive(op); err != nil {
		return err
	}
	if err := checkAxis(axis, op); err != nil {
		return err
	}
	if a.modes[axis] != ModeServoTracking {
		a.notify(op, fmt.Sprintf("axis %d servo is off, target accepted but the axis will not move", axis))
	}
	target := position*nmPerMicron + a.zero[axis]
	if raw := a.gw.SetTargetPosition(a.handle, axis, target); raw != ancOk {
		return Error(raw, "anc350.SetTargetPosition")
	}
	return nil
}

// Position returns the user-coordinate position of an axis in micrometers
func (a *ANC350) Position(axis int) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	const op = "anc350.Position"
	if err := a.checkLive(op); err != nil {
		return 0, err
	}
	if err := checkAxis(axis, op); err != nil {
		return 0, err
	}
	pos, raw := a.gw.GetPosition(a.handle, axis)
	if err := Error(raw, "anc350.GetPosition"); err != nil {
		return 0, err
	}
	a.lastPos[axis] = pos
	return (pos - a.zero[axis]) / nmPerMicron, nil
}

// SetZeroHere captures the current raw position of every axis into the zero
// offsets, re-zeroing the user coordinate system at the present location.
// Axes are read sequentially; an error aborts the capture.
func (a *ANC350) SetZeroHere() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	const op = "anc350.SetZeroHere"
	if err := a.checkLive(op); err != nil {
		return err
	}
	var offsets [NumAxes]float64
	for axis := 0; axis < NumAxes; axis++ {
		pos, raw := a.gw.GetPosition(a.handle, axis)
		if err := Error(raw, "anc350.GetPosition"); err != nil {
			return err
		}
		offsets[axis] = pos
	}
	a.zero = offsets
	return nil
}

// SetZero assigns an explicit offset vector in device units (nm)
func (a *ANC350) SetZero(offsets [NumAxes]float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkLive("anc350.SetZero"); err != nil {
		return err
	}
	a.zero = offsets
	return nil
}

// ZeroOffsets returns the current offset vector in device units (nm)
func (a *ANC350) ZeroOffsets() [NumAxes]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.zero
}

// Voltage reads the DC actuation voltage on an axis
func (a *ANC350) Voltage(axis int) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	const op = "anc350.Voltage"
	if err := a.checkLive(op); err != nil {
		return 0, err
	}
	if err := checkAxis(axis, op); err != nil {
		return 0, err
	}
	v, raw := a.gw.GetDcVoltage(a.handle, axis)
	return v, Error(raw, "anc350.GetDcVoltage")
}

// Mode reports the operating mode of an axis
func (a *ANC350) Mode(axis int) (AxisMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	const op = "anc350.Mode"
	if err := a.checkLive(op); err != nil {
		return ModeDisabled, err
	}
	if err := checkAxis(axis, op); err != nil {
		return ModeDisabled, err
	}
	return a.modes[axis], nil
}

// PollStatus queries each axis in index order and folds the results into
// one snapshot.  The snapshot is all-or-nothing: any axis read failing
// discards the whole pass.
func (a *ANC350) PollStatus() (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	const op = "anc350.PollStatus"
	var s Status
	if err := a.checkLive(op); err != nil {
		return Status{}, err
	}
	for axis := 0; axis < NumAxes; axis++ {
		st, raw := a.gw.GetAxisStatus(a.handle, axis)
		if err := Error(raw, "anc350.GetAxisStatus"); err != nil {
			return Status{}, err
		}
		s.Connected[axis] = util.IntToBool(st.Connected)
		s.Enabled[axis] = util.IntToBool(st.Enabled)
		s.Moving[axis] = util.IntToBool(st.Moving)
		s.AtTarget[axis] = util.IntToBool(st.Target)
		s.EndOfTravelFwd[axis] = util.IntToBool(st.EotFwd)
		s.EndOfTravelBwd[axis] = util.IntToBool(st.EotBwd)
		s.Error[axis] = util.IntToBool(st.Error)
	}
	return s, nil
}

// Close releases the library handle.  The release is attempted exactly
// once and a failed release is surfaced to the caller.  Further Close
// calls are no-ops.
func (a *ANC350) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	raw := a.gw.Disconnect(a.handle)
	return Error(raw, "anc350.Disconnect")
}
