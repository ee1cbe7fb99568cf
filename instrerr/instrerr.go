// Package instrerr contains the uniform error taxonomy shared by the
// instrument drivers in this repository.
//
// Every raw return code from a vendor library or device is routed through a
// per-vendor mapping into one of the Code values below before any control
// decision is made or anything is reported to a caller.  Raw codes never
// leak past the driver that produced them; the Raw field on Error is carried
// only for diagnostics.
package instrerr

import (
	"errors"
	"fmt"
)

// Code is one kind of failure in the taxonomy.  The zero value is Ok.
type Code int

const (
	// Ok means the operation succeeded.  It never appears inside an Error.
	Ok Code = iota

	// Timeout means the device or transport did not answer in time.
	Timeout

	// NotConnected means no live connection or handle exists.
	NotConnected

	// DriverAccessError means the vendor driver could not be reached or
	// refused the call.
	DriverAccessError

	// DeviceLocked means another process holds the device.
	DeviceLocked

	// UnknownDeviceError means the device reported a fault it could not
	// attribute.
	UnknownDeviceError

	// NoSuchDevice means the addressed device does not exist.
	NoSuchDevice

	// NoSuchAxis means the addressed axis does not exist.
	NoSuchAxis

	// OutOfRange means a parameter fell outside the permitted range.
	OutOfRange

	// UnsupportedOperation means the device cannot perform the request.
	UnsupportedOperation

	// FileError means the vendor library failed on a file access.
	FileError

	// Unspecified covers every raw code not in the known set.
	Unspecified

	// DeviceCountMismatch is a driver-level condition: discovery found a
	// number of devices other than exactly one.
	DeviceCountMismatch

	// PreconditionViolation is a driver-level condition: the call was
	// malformed before it ever reached the device, e.g. an axis index
	// outside the valid set.
	PreconditionViolation
)

var codeNames = map[Code]string{
	Ok:                    "OK",
	Timeout:               "TIMEOUT",
	NotConnected:          "NOT_CONNECTED",
	DriverAccessError:     "DRIVER_ACCESS_ERROR",
	DeviceLocked:          "DEVICE_LOCKED",
	UnknownDeviceError:    "UNKNOWN_DEVICE_ERROR",
	NoSuchDevice:          "NO_SUCH_DEVICE",
	NoSuchAxis:            "NO_SUCH_AXIS",
	OutOfRange:            "OUT_OF_RANGE",
	UnsupportedOperation:  "UNSUPPORTED_OPERATION",
	FileError:             "FILE_ERROR",
	Unspecified:           "UNSPECIFIED",
	DeviceCountMismatch:   "DEVICE_COUNT_MISMATCH",
	PreconditionViolation: "PRECONDITION_VIOLATION",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// Error is a taxonomy failure.  Op names the operation that failed in
// "driver.Method" form.  Raw holds the vendor code when one existed and is
// zero for driver-level conditions.
type Error struct {
	Code Code
	Raw  int
	Op   string
}

func (e *Error) Error() string {
	if e.Raw != 0 {
		return fmt.Sprintf("%s: %s (raw code %d)", e.Op, e.Code, e.Raw)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// New returns an Error with no raw vendor code attached.
func New(code Code, op string) *Error {
	return &Error{Code: code, Op: op}
}

// FromRaw returns an Error carrying the vendor code it was mapped from.
func FromRaw(code Code, raw int, op string) *Error {
	return &Error{Code: code, Raw: raw, Op: op}
}

// CodeOf extracts the taxonomy code from err.  A nil error is Ok; an error
// from outside the taxonomy is Unspecified.
func CodeOf(err error) Code {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unspecified
}
