// Package ieee488 provides the IEEE 488.2 common commands shared by every SCPI
// instrument (*IDN?, *OPT?, *CLS, *RST, *WAI, *OPC, *ESR?, *STB?, *TST?) as a
// capability composed over any session-like Instrument.
package ieee488

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-scpi/internal/pool"
	"github.com/arloliu/go-scpi/scpi"
)

// Standard event status register bits.
const (
	ESROperationComplete uint8 = 1 << 0
	ESRRequestControl    uint8 = 1 << 1
	ESRQueryError        uint8 = 1 << 2
	ESRDeviceError       uint8 = 1 << 3
	ESRExecutionError    uint8 = 1 << 4
	ESRCommandError      uint8 = 1 << 5
	ESRUserRequest       uint8 = 1 << 6
	ESRPowerOn           uint8 = 1 << 7
)

// Status byte bits.
const (
	STBErrorQueue         uint8 = 1 << 2
	STBQuestionable       uint8 = 1 << 3
	STBMessageAvailable   uint8 = 1 << 4
	STBEventStatusSummary uint8 = 1 << 5
	STBRequestService     uint8 = 1 << 6
	STBOperation          uint8 = 1 << 7
)

// DefaultPollInterval is the *ESR? polling period of PollOperationComplete.
const DefaultPollInterval = 50 * time.Millisecond

// ErrSelfTestFailed is returned by SelfTest when the instrument reports a non-zero result.
var ErrSelfTestFailed = errors.New("ieee488: self test failed")

// Instrument is the session surface the common commands need. *scpi.Session
// implements it.
type Instrument interface {
	Command(ctx context.Context, text string) error
	Query(ctx context.Context, text string) (string, error)
	QueryTimeout(ctx context.Context, text string, timeout time.Duration) (string, error)
}

var _ Instrument = (*scpi.Session)(nil)

// Identity is the parsed *IDN? reply.
type Identity struct {
	Manufacturer string
	Model        string
	SerialNumber string
	Firmware     string
}

func (id Identity) String() string {
	return strings.Join([]string{id.Manufacturer, id.Model, id.SerialNumber, id.Firmware}, ",")
}

// ParseIdentity parses a "manufacturer,model,serial,firmware" reply. Missing fields
// are left empty; extra commas stay in the firmware field.
func ParseIdentity(reply string) Identity {
	fields := strings.SplitN(strings.TrimSpace(reply), ",", 4)
	for len(fields) < 4 {
		fields = append(fields, "")
	}

	return Identity{
		Manufacturer: strings.TrimSpace(fields[0]),
		Model:        strings.TrimSpace(fields[1]),
		SerialNumber: strings.TrimSpace(fields[2]),
		Firmware:     strings.TrimSpace(fields[3]),
	}
}

// Common issues IEEE 488.2 common commands to an instrument.
//
// A session in strict mode returns a valid reply together with an *scpi.InstrumentError.
// The methods of Common keep that behavior: the parsed result is returned along with
// the instrument error, which matches scpi.ErrInstrument.
type Common struct {
	inst         Instrument
	pollInterval time.Duration
}

// New creates the common command set for inst.
func New(inst Instrument) *Common {
	return &Common{inst: inst, pollInterval: DefaultPollInterval}
}

// SetPollInterval sets the *ESR? polling period of PollOperationComplete.
func (c *Common) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// ID returns the *IDN? reply.
func (c *Common) ID(ctx context.Context) (string, error) {
	reply, err := c.inst.Query(ctx, "*IDN?")
	if failed(err) {
		return "", err
	}

	return strings.TrimSpace(reply), err
}

// Identity returns the parsed *IDN? reply.
func (c *Common) Identity(ctx context.Context) (Identity, error) {
	reply, err := c.ID(ctx)
	if failed(err) {
		return Identity{}, err
	}

	return ParseIdentity(reply), err
}

// Options returns the installed options reported by *OPT?. An instrument without
// options answers "0", which yields an empty list.
func (c *Common) Options(ctx context.Context) ([]string, error) {
	reply, err := c.inst.Query(ctx, "*OPT?")
	if failed(err) {
		return nil, err
	}

	items := scpi.SplitList(reply)
	opts := make([]string, 0, len(items))
	for _, item := range items {
		item = scpi.Unquote(item)
		if item == "" || item == "0" {
			continue
		}
		opts = append(opts, item)
	}

	return opts, err
}

// ClearStatus sends *CLS, clearing the status registers and the error queue.
func (c *Common) ClearStatus(ctx context.Context) error {
	return c.inst.Command(ctx, "*CLS")
}

// Reset sends *RST.
func (c *Common) Reset(ctx context.Context) error {
	return c.inst.Command(ctx, "*RST")
}

// Wait sends *WAI, making the instrument finish pending operations before executing
// later commands.
func (c *Common) Wait(ctx context.Context) error {
	return c.inst.Command(ctx, "*WAI")
}

// OperationComplete sends *OPC, which sets the operation complete bit of the event
// status register once pending operations finish.
func (c *Common) OperationComplete(ctx context.Context) error {
	return c.inst.Command(ctx, "*OPC")
}

// IsOperationComplete queries *OPC? with the session default timeout.
func (c *Common) IsOperationComplete(ctx context.Context) (bool, error) {
	reply, err := c.inst.Query(ctx, "*OPC?")
	if failed(err) {
		return false, err
	}

	done, perr := scpi.ParseBool(reply)
	if perr != nil {
		return false, errors.Join(perr, err)
	}

	return done, err
}

// BlockUntilOperationComplete queries *OPC? with timeout for this call only, for
// operations such as sweeps that outlast the default timeout.
func (c *Common) BlockUntilOperationComplete(ctx context.Context, timeout time.Duration) error {
	reply, err := c.inst.QueryTimeout(ctx, "*OPC?", timeout)
	if failed(err) {
		return err
	}

	done, perr := scpi.ParseBool(reply)
	if perr != nil {
		return errors.Join(perr, err)
	}
	if !done {
		return errors.Join(fmt.Errorf("ieee488: *OPC? returned %q", reply), err)
	}

	return err
}

// PollOperationComplete sends *OPC and polls *ESR? until the operation complete bit is
// set or ctx is done. Unlike *OPC? it keeps the session available between polls.
// Reading *ESR? clears the register, so other event bits seen while polling are lost.
//
// Instrument errors reported while polling do not stop it; their entries are returned
// as one *scpi.InstrumentError once the operation completes.
func (c *Common) PollOperationComplete(ctx context.Context) error {
	var entries []scpi.ErrorQueueEntry
	collect := func(err error) {
		var instErr *scpi.InstrumentError
		if errors.As(err, &instErr) {
			entries = append(entries, instErr.Entries...)
		}
	}

	err := c.OperationComplete(ctx)
	if failed(err) {
		return err
	}
	collect(err)

	err = pool.Poll(ctx, c.pollInterval, func(ctx context.Context) (bool, error) {
		esr, err := c.EventStatus(ctx)
		if failed(err) {
			return false, err
		}
		collect(err)

		return esr&ESROperationComplete != 0, nil
	})
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return &scpi.InstrumentError{Entries: entries}
	}

	return nil
}

// EventStatus reads and clears the standard event status register (*ESR?).
func (c *Common) EventStatus(ctx context.Context) (uint8, error) {
	return c.queryRegister(ctx, "*ESR?")
}

// StatusByte reads the status byte (*STB?).
func (c *Common) StatusByte(ctx context.Context) (uint8, error) {
	return c.queryRegister(ctx, "*STB?")
}

// SelfTest runs *TST? with timeout and returns ErrSelfTestFailed wrapping the result
// code when it is not zero.
func (c *Common) SelfTest(ctx context.Context, timeout time.Duration) error {
	reply, err := c.inst.QueryTimeout(ctx, "*TST?", timeout)
	if failed(err) {
		return err
	}

	code, perr := scpi.ParseInt(reply)
	if perr != nil {
		return errors.Join(perr, err)
	}
	if code != 0 {
		return errors.Join(fmt.Errorf("%w: result %d", ErrSelfTestFailed, code), err)
	}

	return err
}

func (c *Common) queryRegister(ctx context.Context, query string) (uint8, error) {
	reply, err := c.inst.Query(ctx, query)
	if failed(err) {
		return 0, err
	}

	v, perr := scpi.ParseUint(reply)
	if perr != nil {
		return 0, errors.Join(perr, err)
	}
	if v > 255 {
		return 0, errors.Join(fmt.Errorf("%w: %s returned %d", scpi.ErrInvalidValue, query, v), err)
	}

	return uint8(v), err
}

// failed reports whether err invalidates the reply. An instrument error drained in
// strict mode comes with a valid reply and does not.
func failed(err error) bool {
	return err != nil && !errors.Is(err, scpi.ErrInstrument)
}
