package attocube

// RawAxisStatus is the per-axis status word set as the control library
// reports it, C-style integer flags, nonzero == true.
type RawAxisStatus struct {
	Connected int
	Enabled   int
	Moving    int
	Target    int
	EotFwd    int
	EotBwd    int
	Error     int
}

// Gateway is the surface of the vendor control library.  Every call returns
// a raw integer code from the table in codes.go; implementations do not
// interpret the codes themselves.
//
// The production implementation is the cgo binding behind the anc350 build
// tag; tests use the Mock in mock.go.
type Gateway interface {
	// Enumerate scans for devices of the given interface type and returns
	// how many were found
	Enumerate(ifaceFilter int) (count int, raw int)

	// Connect opens device devNo and returns the handle for all further calls
	Connect(devNo int) (handle int, raw int)

	// Disconnect releases the handle
	Disconnect(handle int) (raw int)

	// GetPosition reads the current position of an axis in device units (nm)
	GetPosition(handle, axis int) (pos float64, raw int)

	// SetTargetPosition writes the servo target of an axis in device units (nm)
	SetTargetPosition(handle, axis int, target float64) (raw int)

	// StartAutoMove switches the servo loop for an axis on or off
	StartAutoMove(handle, axis int, enable, relative bool) (raw int)

	// SetDcVoltage applies a raw actuation voltage to an axis
	SetDcVoltage(handle, axis int, volts float64) (raw int)

	// GetDcVoltage reads the actuation voltage on an axis
	GetDcVoltage(handle, axis int) (volts float64, raw int)

	// GetAxisStatus reads the status word set for an axis
	GetAxisStatus(handle, axis int) (st RawAxisStatus, raw int)
}
