package attocube

import "sync"

// Mock is an in-memory Gateway for tests and hardware-free bring-up of the
// HTTP layer.  It records every target and auto-move call so tests can
// assert on command order, and any call can be made to fail by loading a
// raw code into Fail.
type Mock struct {
	sync.Mutex

	// Positions are the raw positions (nm) reported by GetPosition
	Positions [NumAxes]float64

	// DeviceCount is what Enumerate reports, default 1 via NewMock
	DeviceCount int

	// Fail maps a method name ("GetPosition", "Disconnect", ...) to a raw
	// code returned instead of ancOk.  Axis-independent.
	Fail map[string]int

	// Targets is the history of SetTargetPosition calls
	Targets []TargetCall

	// AutoMoves is the history of StartAutoMove calls
	AutoMoves []AutoMoveCall

	// Voltages holds the last applied DC voltage per axis
	Voltages [NumAxes]float64

	// Statuses is what GetAxisStatus reports per axis
	Statuses [NumAxes]RawAxisStatus

	// Disconnected counts Disconnect calls
	Disconnected int
}

// TargetCall is one recorded SetTargetPosition invocation
type TargetCall struct {
	Axis   int
	Target float64
}

// AutoMoveCall is one recorded StartAutoMove invocation
type AutoMoveCall struct {
	Axis   int
	Enable bool
}

// NewMock returns a mock reporting one connected device with all axes ok
func NewMock() *Mock {
	m := &Mock{DeviceCount: 1, Fail: map[string]int{}}
	for i := 0; i < NumAxes; i++ {
		m.Statuses[i] = RawAxisStatus{Connected: 1, Enabled: 1}
	}
	return m
}

func (m *Mock) failCode(method string) int {
	if raw, ok := m.Fail[method]; ok {
		return raw
	}
	return ancOk
}

func (m *Mock) Enumerate(ifaceFilter int) (int, int) {
	m.Lock()
	defer m.Unlock()
	return m.DeviceCount, m.failCode("Enumerate")
}

func (m *Mock) Connect(devNo int) (int, int) {
	m.Lock()
	defer m.Unlock()
	return 1, m.failCode("Connect")
}

func (m *Mock) Disconnect(handle int) int {
	m.Lock()
	defer m.Unlock()
	m.Disconnected++
	return m.failCode("Disconnect")
}

func (m *Mock) GetPosition(handle, axis int) (float64, int) {
	m.Lock()
	defer m.Unlock()
	return m.Positions[axis], m.failCode("GetPosition")
}

func (m *Mock) SetTargetPosition(handle, axis int, target float64) int {
	m.Lock()
	defer m.Unlock()
	raw := m.failCode("SetTargetPosition")
	if raw == ancOk {
		m.Targets = append(m.Targets, TargetCall{Axis: axis, Target: target})
	}
	return raw
}

func (m *Mock) StartAutoMove(handle, axis int, enable, relative bool) int {
	m.Lock()
	defer m.Unlock()
	raw := m.failCode("StartAutoMove")
	if raw == ancOk {
		m.AutoMoves = append(m.AutoMoves, AutoMoveCall{Axis: axis, Enable: enable})
	}
	return raw
}

func (m *Mock) SetDcVoltage(handle, axis int, volts float64) int {
	m.Lock()
	defer m.Unlock()
	raw := m.failCode("SetDcVoltage")
	if raw == ancOk {
		m.Voltages[axis] = volts
	}
	return raw
}

func (m *Mock) GetDcVoltage(handle, axis int) (float64, int) {
	m.Lock()
	defer m.Unlock()
	return m.Voltages[axis], m.failCode("GetDcVoltage")
}

func (m *Mock) GetAxisStatus(handle, axis int) (RawAxisStatus, int) {
	m.Lock()
	defer m.Unlock()
	return m.Statuses[axis], m.failCode("GetAxisStatus")
}
