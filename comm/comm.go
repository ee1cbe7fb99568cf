/*Package comm provides the transport layer for communication with lab hardware.

Most usages of this package will boil down to:
 1. create a RemoteDevice pointed at a serial port or TCP socket
 2. adjust the terminators if the device does not use carriage returns
 3. write driver methods on top of SendRecv and Send

The device holds a single connection and a mutex; drivers that expose their
operations to multiple callers wrap each public operation with Lock/Unlock so
the transport round-trips never interleave.
*/
package comm

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

var (
	// ErrNoSerialConf is generated when a serial RemoteDevice has no serial config
	ErrNoSerialConf = errors.New("device is serial and has no serial config")

	// ErrNotConnected is generated when .Conn is nil and Send or Recv is called.
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrTerminatorNotFound is generated when the termination byte is not found in a response
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// Terminators holds the byte that ends a transmitted message and the byte
// that ends a received one.
type Terminators struct {
	Tx byte
	Rx byte
}

// Sender has a Send method that passes along a byte slice
type Sender interface {
	Send([]byte) error
}

// Recver has a Recv method that gets a byte slice
type Recver interface {
	Recv() ([]byte, error)
}

// SendRecver can send and receive, and provides a method that sends then receives
type SendRecver interface {
	Sender
	Recver

	SendRecv([]byte) ([]byte, error)
}

/*RemoteDevice holds a connection to a piece of hardware over serial or TCP.

The zero value is not usable; create instances with NewRemoteDevice.  Conn is
exported so that tests can inject an in-memory transport.
*/
type RemoteDevice struct {
	Addr     string
	IsSerial bool

	// Timeout is the round-trip deadline applied to TCP connections
	Timeout time.Duration

	Conn io.ReadWriteCloser

	terms  Terminators
	serCfg *serial.Config

	// rdr buffers reads across Recv calls; a device that emits more than
	// one terminated line per request would otherwise lose the remainder
	rdr *bufio.Reader

	mu sync.Mutex
}

// NewRemoteDevice creates a new RemoteDevice instance.  terms and serCfg may
// be nil, in which case carriage-return terminators and no serial config are
// used.
func NewRemoteDevice(addr string, isSerial bool, terms *Terminators, serCfg *serial.Config) RemoteDevice {
	if terms == nil {
		terms = &Terminators{Tx: '\r', Rx: '\r'}
	}
	return RemoteDevice{
		Addr:     addr,
		IsSerial: isSerial,
		Timeout:  3 * time.Second,
		terms:    *terms,
		serCfg:   serCfg}
}

// Lock acquires the device mutex
func (rd *RemoteDevice) Lock() {
	rd.mu.Lock()
}

// Unlock releases the device mutex
func (rd *RemoteDevice) Unlock() {
	rd.mu.Unlock()
}

// Open the connection, setting the Conn variable.  Connection thrashing is
// smoothed with an exponential backoff; some devices refuse a connection
// that follows too hard on the heels of the previous one.  Open is a no-op
// on an already-open device.
func (rd *RemoteDevice) Open() error {
	if rd.Conn != nil {
		return nil
	}
	wasTimeout := false
	op := func() error {
		err := rd.open()
		if err != nil {
			errS := strings.ToLower(err.Error())
			if strings.Contains(errS, "refused") {
				return err
			}
			wasTimeout = true
			return nil
		}
		return nil
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err == nil && !wasTimeout {
		return nil
	}
	if wasTimeout {
		return errors.Errorf("connection timeout to %s", rd.Addr)
	}
	return err
}

func (rd *RemoteDevice) open() error {
	var err error
	var conn io.ReadWriteCloser
	if rd.IsSerial {
		if rd.serCfg == nil {
			return ErrNoSerialConf
		}
		conn, err = serial.OpenPort(rd.serCfg)
	} else {
		conn, err = TCPSetup(rd.Addr, rd.Timeout)
	}
	if err != nil {
		return errors.Wrapf(err, "open %s", rd.Addr)
	}
	rd.Conn = conn
	return nil
}

// Close the connection, nil-ing the Conn variable.  The close error is
// surfaced; a failed release may leak the underlying handle and the caller
// is the one who decides what to do about it.
func (rd *RemoteDevice) Close() error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	err := rd.Conn.Close()
	if err == nil {
		rd.Conn = nil
		rd.rdr = nil
	}
	return err
}

// TxTerminator returns the transmission termination byte
func (rd *RemoteDevice) TxTerminator() byte {
	return rd.terms.Tx
}

// RxTerminator returns the receipt termination byte
func (rd *RemoteDevice) RxTerminator() byte {
	return rd.terms.Rx
}

// Send writes data to the remote after appending the Tx terminator
func (rd *RemoteDevice) Send(b []byte) error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	b = append(b, rd.terms.Tx)
	_, err := rd.Conn.Write(b)
	return err
}

// Recv receives data from the remote and strips the Rx terminator
func (rd *RemoteDevice) Recv() ([]byte, error) {
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	if rd.rdr == nil {
		rd.rdr = bufio.NewReader(rd.Conn)
	}
	term := rd.terms.Rx
	buf, err := rd.rdr.ReadBytes(term)
	if err != nil {
		return []byte{}, err
	}
	if bytes.HasSuffix(buf, []byte{term}) {
		idx := bytes.IndexByte(buf, term)
		return buf[:idx], nil
	}
	return buf, ErrTerminatorNotFound
}

// SendRecv sends a buffer after appending the Tx terminator,
// then returns the response with the Rx terminator stripped
func (rd *RemoteDevice) SendRecv(b []byte) ([]byte, error) {
	err := rd.Send(b)
	if err != nil {
		return []byte{}, err
	}
	return rd.Recv()
}

// OpenSendRecv opens the connection if needed, does one round trip and
// leaves the connection open for the next command
func (rd *RemoteDevice) OpenSendRecv(b []byte) ([]byte, error) {
	err := rd.Open()
	if err != nil {
		return nil, err
	}
	return rd.SendRecv(b)
}

// TCPSetup opens a new TCP connection and sets a timeout on connect, read, and write
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}
