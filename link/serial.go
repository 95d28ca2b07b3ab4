package link

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialOpener opens operating system serial ports with go.bug.st/serial.
//
// The zero value opens ports in 8N1 mode, which is what Nextion displays use.
type SerialOpener struct {
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
}

var _ Opener = SerialOpener{}

// Open opens the named port at baud.
func (o SerialOpener) Open(name string, baud int) (Port, error) {
	dataBits := o.DataBits
	if dataBits == 0 {
		dataBits = 8
	}

	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: dataBits,
		Parity:   o.Parity,
		StopBits: o.StopBits,
	})
	if err != nil {
		return nil, err
	}

	return port, nil
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("link: list serial ports: %w", err)
	}

	return ports, nil
}
