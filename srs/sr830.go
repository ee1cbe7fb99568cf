/*Package srs provides control of Stanford Research Systems lock-in amplifiers.

The SR830 speaks carriage-return terminated ASCII over RS232; queries carry a
question mark and arguments are comma separated.  The interesting part of the
driver is the auto-ranging protocol in AutoMeasure: a changed gain needs
physical settling time before a reading is trustworthy, and the device is the
only source of truth for when the gain change has finished, so the driver
polls the serial poll status byte at a fixed cadence until the device reports
the command complete.  The poll loop honors context cancellation between
iterations; exceeding the caller's deadline is a Timeout in the uniform
taxonomy.

All public operations hold the device mutex; the serial line is a single
shared resource with no internal locking.
*/
package srs

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"
	"golang.org/x/time/rate"

	"github.com/spmlab/goinst/comm"
	"github.com/spmlab/goinst/instrerr"
	"github.com/spmlab/goinst/util"
	"github.com/spmlab/goinst/warn"
)

const (
	// NumSensitivities is the length of the sensitivity table, indexes 0..26
	NumSensitivities = 27

	// auxOutLimit bounds the aux output DACs in volts
	auxOutLimit = 10.5

	defaultPollInterval     = 100 * time.Millisecond
	defaultSettleTime       = 500 * time.Millisecond
	defaultAutoRangeTimeout = 30 * time.Second
)

// Sensitivity is an index into the amplifier's full-scale table.  The table
// is the usual 1-2-5 ladder starting at 2 nV: index 0 is 2 nV, 1 is 5 nV,
// 2 is 10 nV, 3 is 20 nV and so on up to 1 V at index 26.
type Sensitivity int

// sensitivity mantissas cycle 2, 5, 1; the 1 belongs to the next decade
var sensMantissas = [3]int{2, 5, 1}

// Valid reports whether the index is inside the table
func (s Sensitivity) Valid() bool {
	return s >= 0 && s < NumSensitivities
}

// Decode returns the mantissa and base-10 exponent of the full-scale value
func (s Sensitivity) Decode() (mantissa, exponent int) {
	mantissa = sensMantissas[int(s)%3]
	exponent = -9 + int(s)/3
	if mantissa == 1 {
		exponent++
	}
	return mantissa, exponent
}

// Volts returns the physical full-scale value in volts
func (s Sensitivity) Volts() float64 {
	m, e := s.Decode()
	return float64(m) * math.Pow(10, float64(e))
}

func (s Sensitivity) String() string {
	return fmt.Sprintf("%g V", s.Volts())
}

// SensitivityFor returns the smallest table entry whose full scale admits v
func SensitivityFor(v float64) (Sensitivity, error) {
	for s := Sensitivity(0); s < NumSensitivities; s++ {
		if s.Volts() >= v {
			return s, nil
		}
	}
	return 0, instrerr.New(instrerr.OutOfRange, "sr830.SensitivityFor")
}

// Reading is one atomic six-channel sample.  All values describe the same
// device-internal instant; the SNAP query samples them together, which six
// separate single-channel queries would not.
type Reading struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	R     float64 `json:"r"`
	Theta float64 `json:"theta"`
	Aux1  float64 `json:"aux1"`
	Aux2  float64 `json:"aux2"`
}

// StatusFlags is the decoded lock-in status register
type StatusFlags struct {
	InputOverload     bool `json:"inputOverload"`
	FilterOverload    bool `json:"filterOverload"`
	OutputOverload    bool `json:"outputOverload"`
	ReferenceUnlocked bool `json:"referenceUnlocked"`
}

// statusFromRegister unpacks the LIAS register's low four bits
func statusFromRegister(reg int) StatusFlags {
	return StatusFlags{
		InputOverload:     util.GetBit(reg, 0),
		FilterOverload:    util.GetBit(reg, 1),
		OutputOverload:    util.GetBit(reg, 2),
		ReferenceUnlocked: util.GetBit(reg, 3),
	}
}

// stbCommandDone is the serial poll bit meaning no command in progress
const stbCommandDone = 1 << 1

// makeSerConf makes a new serial.Config with correct parity, baud, etc, set.
func makeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        9600,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 10 * time.Second}
}

// SR830 represents an SR830 lock-in amplifier
type SR830 struct {
	*comm.RemoteDevice

	// Notify receives recoverable-condition signals.  When nil, warnings
	// go to the default logger.
	Notify warn.Handler

	// PollInterval is the cadence of completion polls during auto-ranging
	PollInterval time.Duration

	// SettleTime is how long a new gain is given to stabilize before the
	// settled reading is taken
	SettleTime time.Duration

	closed bool
}

// NewSR830 returns a new SR830 instance with sane comm defaults
func NewSR830(addr string, connectSerial bool) *SR830 {
	terms := comm.Terminators{Tx: '\r', Rx: '\r'}
	rd := comm.NewRemoteDevice(addr, connectSerial, &terms, makeSerConf(addr))
	rd.Timeout = 10 * time.Second
	return &SR830{
		RemoteDevice: &rd,
		PollInterval: defaultPollInterval,
		SettleTime:   defaultSettleTime}
}

func (sr *SR830) notify(op, detail string) {
	h := sr.Notify
	if h == nil {
		h = warn.Log
	}
	h(warn.Warning{Device: "sr830", Op: op, Detail: detail})
}

// the unexported I/O helpers assume the caller holds the device mutex

func (sr *SR830) writeOnly(cmds ...string) error {
	if sr.closed {
		return instrerr.New(instrerr.NotConnected, "sr830.writeOnly")
	}
	err := sr.RemoteDevice.Open()
	if err != nil {
		return err
	}
	return sr.RemoteDevice.Send([]byte(strings.Join(cmds, " ")))
}

func (sr *SR830) readString(cmds ...string) (string, error) {
	if sr.closed {
		return "", instrerr.New(instrerr.NotConnected, "sr830.readString")
	}
	err := sr.RemoteDevice.Open()
	if err != nil {
		return "", err
	}
	resp, err := sr.RemoteDevice.SendRecv([]byte(strings.Join(cmds, " ")))
	if err != nil {
		return "", err
	}
	return string(resp), nil
}

func (sr *SR830) readFloat(cmds ...string) (float64, error) {
	resp, err := sr.readString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(resp), 64)
}

func (sr *SR830) readInt(cmds ...string) (int, error) {
	resp, err := sr.readString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(resp))
}

// Frequency returns the reference frequency in Hz
func (sr *SR830) Frequency() (float64, error) {
	sr.Lock()
	defer sr.Unlock()
	return sr.readFloat("FREQ?")
}

// AuxIn returns the voltage on one of the four auxiliary inputs, 1-indexed
func (sr *SR830) AuxIn(n int) (float64, error) {
	sr.Lock()
	defer sr.Unlock()
	if n < 1 || n > 4 {
		return 0, instrerr.New(instrerr.PreconditionViolation,
			fmt.Sprintf("sr830.AuxIn: input %d outside [1, 4]", n))
	}
	return sr.readFloat(fmt.Sprintf("OAUX? %d", n))
}

// SetAuxOut sets one of the four auxiliary output DACs, 1-indexed
func (sr *SR830) SetAuxOut(n int, volts float64) error {
	sr.Lock()
	defer sr.Unlock()
	if n < 1 || n > 4 {
		return instrerr.New(instrerr.PreconditionViolation,
			fmt.Sprintf("sr830.SetAuxOut: output %d outside [1, 4]", n))
	}
	if volts < -auxOutLimit || volts > auxOutLimit {
		return instrerr.New(instrerr.OutOfRange,
			fmt.Sprintf("sr830.SetAuxOut: %g V outside [%g, %g]", volts, -auxOutLimit, auxOutLimit))
	}
	return sr.writeOnly(fmt.Sprintf("AUXV %d,%g", n, volts))
}

// Sensitivity returns the current sensitivity index
func (sr *SR830) Sensitivity() (Sensitivity, error) {
	sr.Lock()
	defer sr.Unlock()
	i, err := sr.readInt("SENS?")
	return Sensitivity(i), err
}

// SetSensitivity writes a sensitivity index
func (sr *SR830) SetSensitivity(s Sensitivity) error {
	sr.Lock()
	defer sr.Unlock()
	if !s.Valid() {
		return instrerr.New(instrerr.OutOfRange,
			fmt.Sprintf("sr830.SetSensitivity: index %d outside [0, %d)", s, NumSensitivities))
	}
	return sr.writeOnly("SENS", strconv.Itoa(int(s)))
}

func (sr *SR830) status() (StatusFlags, error) {
	reg, err := sr.readInt("LIAS?")
	if err != nil {
		return StatusFlags{}, err
	}
	return statusFromRegister(reg), nil
}

// Status reads and decodes the lock-in status register.  The read is a
// point-in-time sample of the four flags in one register query.
func (sr *SR830) Status() (StatusFlags, error) {
	sr.Lock()
	defer sr.Unlock()
	return sr.status()
}

func (sr *SR830) autoGain() error {
	return sr.writeOnly("AGAN")
}

// AutoGain commands the amplifier to pick a gain for the present signal.
// The command returns before the gain change completes; see AutoMeasure for
// the protocol that waits it out.
func (sr *SR830) AutoGain() error {
	sr.Lock()
	defer sr.Unlock()
	return sr.autoGain()
}

func (sr *SR830) commandDone() (bool, error) {
	stb, err := sr.readInt("*STB?")
	if err != nil {
		return false, err
	}
	return stb&stbCommandDone != 0, nil
}

func (sr *SR830) snap() (Reading, error) {
	resp, err := sr.readString("SNAP? 1,2,3,4,5,6")
	if err != nil {
		return Reading{}, err
	}
	parts := strings.Split(strings.TrimSpace(resp), ",")
	if len(parts) != 6 {
		return Reading{}, fmt.Errorf("sr830: malformed SNAP response %q", resp)
	}
	vals := make([]float64, 6)
	for i, p := range parts {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Reading{}, err
		}
	}
	return Reading{X: vals[0], Y: vals[1], R: vals[2], Theta: vals[3], Aux1: vals[4], Aux2: vals[5]}, nil
}

// Snapshot performs one atomic six-channel read: X, Y, R, theta, Aux1, Aux2
func (sr *SR830) Snapshot() (Reading, error) {
	sr.Lock()
	defer sr.Unlock()
	return sr.snap()
}

/*AutoMeasure runs the auto-ranging protocol and returns a settled reading.

The sequence is: check the status register; if the output-overload bit is
clear, go straight to the settled snapshot.  On overload, raise an advisory,
issue auto-gain, and poll the serial poll status byte at PollInterval until
the device reports the command complete -- the device is the only source of
completion truth, so the only bound on the loop is the context.  A context
without a deadline is given a 30 second one.  After completion the new gain
settles for SettleTime before the snapshot is taken; skipping that wait
yields a reading still contaminated by the previous range.

Exceeding the deadline anywhere in the protocol returns a Timeout.
*/
func (sr *SR830) AutoMeasure(ctx context.Context) (Reading, error) {
	sr.Lock()
	defer sr.Unlock()
	const op = "sr830.AutoMeasure"
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultAutoRangeTimeout)
		defer cancel()
	}

	st, err := sr.status()
	if err != nil {
		return Reading{}, err
	}
	if st.OutputOverload {
		sr.notify(op, "output overload, auto-ranging before the reading")
		if err := sr.autoGain(); err != nil {
			return Reading{}, err
		}
		lim := rate.NewLimiter(rate.Every(sr.PollInterval), 1)
		lim.Allow() // burn the initial token so every Wait paces one full interval
		for {
			if err := lim.Wait(ctx); err != nil {
				return Reading{}, instrerr.New(instrerr.Timeout, op)
			}
			done, err := sr.commandDone()
			if err != nil {
				return Reading{}, err
			}
			if done {
				break
			}
		}
	}

	select {
	case <-ctx.Done():
		return Reading{}, instrerr.New(instrerr.Timeout, op)
	case <-time.After(sr.SettleTime):
	}
	return sr.snap()
}

// Raw sends a command to the amplifier and returns a response if it was a
// query, else a blank string
func (sr *SR830) Raw(s string) (string, error) {
	sr.Lock()
	defer sr.Unlock()
	if strings.Contains(s, "?") {
		return sr.readString(s)
	}
	return "", sr.writeOnly(s)
}

// Close releases the transport.  The release happens exactly once and a
// failure is surfaced; a device that was never opened has nothing to
// release.  Further Close calls are no-ops.
func (sr *SR830) Close() error {
	sr.Lock()
	defer sr.Unlock()
	if sr.closed {
		return nil
	}
	sr.closed = true
	if sr.RemoteDevice.Conn == nil {
		return nil
	}
	return sr.RemoteDevice.Close()
}
