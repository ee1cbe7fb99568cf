package attocube

import "github.com/spmlab/goinst/instrerr"

// raw return codes used by the ANC350 control library
const (
	ancOk           = 0
	ancError        = -1
	ancTimeout      = 1
	ancNotConnected = 2
	ancDriverError  = 3
	ancDeviceLocked = 7
	ancUnknown      = 8
	ancNoDevice     = 9
	ancNoAxis       = 10
	ancOutOfRange   = 11
	ancNotAvailable = 12
	ancFileError    = 13
)

// codeTable maps the library's raw codes into the uniform taxonomy
var codeTable = map[int]instrerr.Code{
	ancOk:           instrerr.Ok,
	ancError:        instrerr.Unspecified,
	ancTimeout:      instrerr.Timeout,
	ancNotConnected: instrerr.NotConnected,
	ancDriverError:  instrerr.DriverAccessError,
	ancDeviceLocked: instrerr.DeviceLocked,
	ancUnknown:      instrerr.UnknownDeviceError,
	ancNoDevice:     instrerr.NoSuchDevice,
	ancNoAxis:       instrerr.NoSuchAxis,
	ancOutOfRange:   instrerr.OutOfRange,
	ancNotAvailable: instrerr.UnsupportedOperation,
	ancFileError:    instrerr.FileError,
}

// Error maps a raw library code to a taxonomy error, nil when the code is
// benign.  Codes outside the known table map to Unspecified rather than
// failing the mapping itself.
func Error(raw int, op string) error {
	if raw == ancOk {
		return nil
	}
	code, ok := codeTable[raw]
	if !ok {
		code = instrerr.Unspecified
	}
	return instrerr.FromRaw(code, raw, op)
}
