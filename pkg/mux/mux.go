// Package mux drives the TCA9548A I2C multiplexer that fans the Pi's bus out
// to sensors with clashing addresses.
package mux

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	MuxAddr = 0x70

	NumPorts = 8

	// NoPort means a device is wired straight to the bus.
	NoPort = -1
)

type Interface interface {
	DisableAllPorts() error
	SelectSinglePort(num int) error
	SelectMultiplePorts(mask byte) error
	Close() error
}

type port interface {
	Write(buf []byte) error
	Close() error
}

type Mux struct {
	dev port
}

func New(deviceFile string) (*Mux, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, MuxAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening mux on %s", deviceFile)
	}
	return &Mux{
		dev: dev,
	}, nil
}

func (p *Mux) SelectSinglePort(num int) error {
	if num < 0 || num >= NumPorts {
		return errors.Errorf("mux port %d out of range", num)
	}
	return p.dev.Write([]byte{1 << uint(num)})
}

func (p *Mux) SelectMultiplePorts(mask byte) error {
	return p.dev.Write([]byte{mask})
}

func (p *Mux) DisableAllPorts() error {
	return p.dev.Write([]byte{0})
}

func (p *Mux) Close() error {
	return p.dev.Close()
}

func Dummy() Interface {
	return dummyMux{}
}

type dummyMux struct{}

func (dummyMux) SelectSinglePort(num int) error      { return nil }
func (dummyMux) DisableAllPorts() error              { return nil }
func (dummyMux) SelectMultiplePorts(mask byte) error { return nil }
func (dummyMux) Close() error                        { return nil }
