package signal

import (
	"go.bug.st/serial"
)

// DefaultBaudRate matches the sensor firmware default.
const DefaultBaudRate = 115200

// OpenSerial opens portName in 8N1 mode and returns a LineSource reading
// one observation per line from it. Close the source to release the port.
func OpenSerial(portName string, baudRate int) (*LineSource, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}
	return NewSerialSource(port), nil
}

// NewSerialSource wraps an already open port.
func NewSerialSource(port serial.Port) *LineSource {
	return NewLineSource(port)
}
