package beam

import (
	"bufio"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/ausocean/utils/logging"
)

// Line-oriented ASCII protocol constants, grounded on
// original_source/modules/machine/esp_hv_supply: a newline-terminated
// command is written, a newline-terminated status line is read back.
const (
	cmdOn        = "ON\n"
	cmdOff       = "OFF\n"
	cmdQuery     = "STATUS?\n"
	statusReady  = "READY"
	pollInterval = 200 * time.Millisecond
)

// ESP is a Supply backed by a serial-port HV supply that speaks a small
// line-oriented ASCII command set.
type ESP struct {
	portName string
	mode     *serial.Mode
	logger   logging.Logger

	mu   sync.Mutex
	port serial.Port
}

// NewESP opens no port yet; call Open before use.
func NewESP(portName string, baud int, logger logging.Logger) *ESP {
	return &ESP{portName: portName, mode: &serial.Mode{BaudRate: baud}, logger: logger}
}

// Open establishes the serial connection.
func (e *ESP) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := serial.Open(e.portName, e.mode)
	if err != nil {
		return errors.Wrapf(err, "beam: open %s", e.portName)
	}
	p.SetReadTimeout(500 * time.Millisecond)
	e.port = p
	return nil
}

// Close releases the serial connection.
func (e *ESP) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.port == nil {
		return nil
	}
	err := e.port.Close()
	e.port = nil
	return err
}

func (e *ESP) WantsAutoToggle() bool { return true }

func (e *ESP) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.port != nil
}

func (e *ESP) writeCmd(cmd string) error {
	e.mu.Lock()
	port := e.port
	e.mu.Unlock()
	if port == nil {
		return errors.New("beam: not connected")
	}
	_, err := port.Write([]byte(cmd))
	return errors.Wrap(err, "beam: write")
}

func (e *ESP) readStatus() (string, error) {
	e.mu.Lock()
	port := e.port
	e.mu.Unlock()
	if port == nil {
		return "", errors.New("beam: not connected")
	}
	if err := e.writeCmd(cmdQuery); err != nil {
		return "", err
	}
	reader := bufio.NewReader(port)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "beam: read status")
	}
	return strings.TrimSpace(line), nil
}

// TurnOnWaitReady sends ON then polls STATUS? every pollInterval until
// READY, cancel fires, or deadline elapses.
func (e *ESP) TurnOnWaitReady(cancel <-chan struct{}, deadline time.Time) (bool, error) {
	if err := e.writeCmd(cmdOn); err != nil {
		return false, err
	}
	for {
		select {
		case <-cancel:
			return false, errors.New("beam: turn-on wait cancelled")
		default:
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		status, err := e.readStatus()
		if err == nil && status == statusReady {
			return true, nil
		}
		if e.logger != nil && err != nil {
			e.logger.Debug("beam: status poll failed", "error", err.Error())
		}
		select {
		case <-cancel:
			return false, errors.New("beam: turn-on wait cancelled")
		case <-time.After(pollInterval):
		}
	}
}

// TurnOff sends OFF, best-effort.
func (e *ESP) TurnOff() error {
	return e.writeCmd(cmdOff)
}
