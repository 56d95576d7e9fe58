// Package ina219 reads the INA219 current/power monitor over I2C.
package ina219

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	Addr1 = 0x41
	Addr2 = 0x44

	RegConfig      = 0
	RegShuntV      = 1
	RegBusV        = 2
	RegPower       = 3
	RegCurrent     = 4
	RegCalibration = 5

	BusVoltageLSB = 0.004
)

var ErrNotConfigured = errors.New("INA219 not calibrated")

type Interface interface {
	Configure(shuntOhms float64, maxCurrent float64) error
	ReadBusVoltage() (float64, error)
	ReadCurrent() (float64, error)
	ReadPower() (float64, error)
}

type port interface {
	// Read reads len(buf) bytes from the device.
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) (err error)
}

type INA219 struct {
	currentLSB float64
	dev        port
}

func NewI2C(deviceFile string, addr int) (*INA219, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening INA219 at 0x%x on %s", addr, deviceFile)
	}
	return &INA219{
		dev: dev,
	}, nil
}

// Configure writes the calibration register so that the current register
// spans ±maxCurrent.
func (m *INA219) Configure(shuntOhms float64, maxCurrent float64) error {
	if shuntOhms <= 0 || maxCurrent <= 0 {
		return errors.Errorf("bad INA219 calibration: shunt %v ohm, max %vA", shuntOhms, maxCurrent)
	}
	m.currentLSB = maxCurrent / (1 << 15)
	cval := CalculateCalibrationValue(m.currentLSB, shuntOhms)
	err := m.dev.WriteReg(RegCalibration, []byte{byte(cval >> 8), byte(cval)})
	return errors.Wrap(err, "writing INA219 calibration")
}

// CalibrationValue returns the value Configure wrote.
func (m *INA219) CalibrationValue(shuntOhms float64) int16 {
	return CalculateCalibrationValue(m.currentLSB, shuntOhms)
}

func (m *INA219) ReadBusVoltage() (float64, error) {
	raw, err := m.Read16(RegBusV)
	shifted := raw >> 3
	return float64(shifted) * BusVoltageLSB, err
}

// ReadCurrent returns the signed current through the shunt in amps.
func (m *INA219) ReadCurrent() (float64, error) {
	if m.currentLSB == 0 {
		return 0, ErrNotConfigured
	}
	raw, err := m.Read16(RegCurrent)
	return float64(int16(raw)) * m.currentLSB, err
}

func (m *INA219) ReadPower() (float64, error) {
	if m.currentLSB == 0 {
		return 0, ErrNotConfigured
	}
	raw, err := m.Read16(RegPower)
	return float64(raw) * m.currentLSB * 20, err
}

func (m *INA219) Read16(reg byte) (uint16, error) {
	var buf [2]byte
	err := m.dev.ReadReg(reg, buf[:])
	if err != nil {
		return 0, errors.Wrapf(err, "reading INA219 register %d", reg)
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

func CalculateCalibrationValue(currentLSB float64, shuntOhms float64) int16 {
	return int16(0.04096 / (currentLSB * shuntOhms))
}

func Dummy() Interface {
	return dummy{}
}

type dummy struct{}

func (dummy) Configure(shuntOhms float64, maxCurrent float64) error { return nil }
func (dummy) ReadBusVoltage() (float64, error)                      { return 0, nil }
func (dummy) ReadCurrent() (float64, error)                         { return 0, nil }
func (dummy) ReadPower() (float64, error)                           { return 0, nil }
