package motor

import (
	"go.viam.com/rdk/logging"
)

// Dummy stands in for a motor controller that failed to open.  It logs what
// it is asked to do and reports zero for every reading.
type Dummy struct {
	logger logging.Logger
	last   float64
}

func NewDummy(logger logging.Logger) *Dummy {
	return &Dummy{logger: logger}
}

func (d *Dummy) Set(value float64) error {
	if value != d.last {
		d.logger.Debugf("DMC: Set value=%v", value)
		d.last = value
	}
	return nil
}

func (d *Dummy) OutputCurrent() (float64, error) {
	return 0, nil
}

func (d *Dummy) OutputPercent() (float64, error) {
	return d.last, nil
}

func (d *Dummy) Speed() (float64, error) {
	return 0, nil
}

func (d *Dummy) SetControlMode(mode ControlMode) error {
	d.logger.Infof("DMC: SetControlMode mode=%v", mode)
	return nil
}

func (d *Dummy) SetBrakeMode(brake bool) error {
	d.logger.Infof("DMC: SetBrakeMode brake=%v", brake)
	return nil
}

var _ Interface = (*Dummy)(nil)
