//go:build anc350

package attocube

/*
#cgo LDFLAGS: -lanc350v4
#include <stdlib.h>
#include <anc350.h>
*/
import "C"
import "sync"

// libGateway satisfies Gateway against the vendor shared library.  It is a
// thin marshaling layer; interpretation of the raw codes happens in the
// driver.  Build with -tags anc350 and the vendor SDK on the link path.
//
// ANC_Device is an opaque pointer; Gateway trades in integer handles, so the
// pointer is parked in a registry keyed by a small int.
type libGateway struct {
	mu      sync.Mutex
	nextID  int
	devices map[int]C.ANC_Device
}

// SystemGateway returns the Gateway backed by the vendor control library
func SystemGateway() (Gateway, error) {
	return &libGateway{devices: map[int]C.ANC_Device{}}, nil
}

func boolToC(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

func (g *libGateway) device(handle int) C.ANC_Device {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.devices[handle]
}

func (g *libGateway) Enumerate(ifaceFilter int) (int, int) {
	var count C.uint
	raw := int(C.ANC_discover(C.uint(ifaceFilter), &count))
	return int(count), raw
}

func (g *libGateway) Connect(devNo int) (int, int) {
	var dev C.ANC_Device
	raw := int(C.ANC_connect(C.uint(devNo), &dev))
	if raw != ancOk {
		return 0, raw
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	g.devices[g.nextID] = dev
	return g.nextID, raw
}

func (g *libGateway) Disconnect(handle int) int {
	raw := int(C.ANC_disconnect(g.device(handle)))
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.devices, handle)
	return raw
}

func (g *libGateway) GetPosition(handle, axis int) (float64, int) {
	var pos C.double
	raw := int(C.ANC_getPosition(g.device(handle), C.uint(axis), &pos))
	return float64(pos), raw
}

func (g *libGateway) SetTargetPosition(handle, axis int, target float64) int {
	return int(C.ANC_setTargetPosition(g.device(handle), C.uint(axis), C.double(target)))
}

func (g *libGateway) StartAutoMove(handle, axis int, enable, relative bool) int {
	return int(C.ANC_startAutoMove(g.device(handle), C.uint(axis), boolToC(enable), boolToC(relative)))
}

func (g *libGateway) SetDcVoltage(handle, axis int, volts float64) int {
	return int(C.ANC_setDcVoltage(g.device(handle), C.uint(axis), C.double(volts)))
}

func (g *libGateway) GetDcVoltage(handle, axis int) (float64, int) {
	var v C.double
	raw := int(C.ANC_getDcVoltage(g.device(handle), C.uint(axis), &v))
	return float64(v), raw
}

func (g *libGateway) GetAxisStatus(handle, axis int) (RawAxisStatus, int) {
	var connected, enabled, moving, target, eotFwd, eotBwd, errState C.int
	raw := int(C.ANC_getAxisStatus(g.device(handle), C.uint(axis),
		&connected, &enabled, &moving, &target, &eotFwd, &eotBwd, &errState))
	return RawAxisStatus{
		Connected: int(connected),
		Enabled:   int(enabled),
		Moving:    int(moving),
		Target:    int(target),
		EotFwd:    int(eotFwd),
		EotBwd:    int(eotBwd),
		Error:     int(errState)}, raw
}
