// Package tunable lets the operator adjust persisted values from the
// controller while the robot runs.
package tunable

import (
	"math"
	"sync"

	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/dashboard"
)

// Store is where tunables persist their values.
type Store interface {
	GetDouble(key string, def float64) float64
	SetDouble(key string, value float64)
}

type Tunable struct {
	Name     string
	Key      string
	Step     float64
	Min, Max float64

	store  Store
	logger logging.Logger
}

// Add moves the value by delta steps, clamped to [Min, Max], and saves it.
func (t *Tunable) Add(delta int) float64 {
	v := t.Get() + float64(delta)*t.Step
	v = math.Max(t.Min, math.Min(t.Max, v))
	// Snap to the step, then drop the float noise the multiply leaves behind
	// (0.7000000000000001) so the preferences file holds what was shown.
	v = math.Round(math.Round(v/t.Step)*t.Step*1e6) / 1e6
	t.store.SetDouble(t.Key, v)
	t.logger.Infof("Tunable %s = %v", t.Name, v)
	return v
}

func (t *Tunable) Get() float64 {
	return t.store.GetDouble(t.Key, 0)
}

type Tunables struct {
	lock     sync.Mutex
	All      []*Tunable
	selected int
	store    Store
	logger   logging.Logger
}

func New(store Store, logger logging.Logger) *Tunables {
	return &Tunables{store: store, logger: logger}
}

func (t *Tunables) Create(name, key string, step, min, max float64) *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	newTunable := &Tunable{
		Name:   name,
		Key:    key,
		Step:   step,
		Min:    min,
		Max:    max,
		store:  t.store,
		logger: t.logger,
	}
	t.All = append(t.All, newTunable)
	return newTunable
}

func (t *Tunables) SelectNext() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.All) == 0 {
		return
	}
	t.selected = (t.selected + 1) % len(t.All)
	t.logger.Infof("Tunable %s selected, value: %v", t.All[t.selected].Name, t.All[t.selected].Get())
}

func (t *Tunables) SelectPrev() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.All) == 0 {
		return
	}
	t.selected--
	if t.selected < 0 {
		t.selected = len(t.All) - 1
	}
	t.logger.Infof("Tunable %s selected, value: %v", t.All[t.selected].Name, t.All[t.selected].Get())
}

// Current returns the selected tunable, or nil if there are none.
func (t *Tunables) Current() *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.All) == 0 {
		return nil
	}
	return t.All[t.selected]
}

// InitSendable shows every tunable plus the index of the selected one.
func (t *Tunables) InitSendable(b *dashboard.Builder) {
	b.AddDoubleProperty("00. selected", func() float64 {
		t.lock.Lock()
		defer t.lock.Unlock()
		return float64(t.selected)
	})
	t.lock.Lock()
	all := append([]*Tunable(nil), t.All...)
	t.lock.Unlock()
	for _, tu := range all {
		b.AddDoubleProperty(tu.Name, tu.Get)
	}
}
