// Package dashboard publishes read-only subsystem values for display.
//
// Subsystems describe their values once, through InitSendable.  The control
// loop calls Board.Publish at the end of every cycle, which samples every
// property on the control loop's goroutine; displays only ever see the
// published copies.
package dashboard

import (
	"sort"
	"sync"
)

type Sendable interface {
	InitSendable(b *Builder)
}

type Kind int

const (
	KindDouble Kind = iota
	KindBoolean
)

type property struct {
	key     string
	kind    Kind
	double  func() float64
	boolean func() bool
}

// Builder collects the properties of one Sendable.
type Builder struct {
	props []property
}

func (b *Builder) AddDoubleProperty(key string, get func() float64) {
	b.props = append(b.props, property{key: key, kind: KindDouble, double: get})
}

func (b *Builder) AddBooleanProperty(key string, get func() bool) {
	b.props = append(b.props, property{key: key, kind: KindBoolean, boolean: get})
}

// Widget is a Sendable placed on a tab.
type Widget struct {
	Name          string
	Width, Height int
	X, Y          int

	props []property
}

func (w *Widget) WithSize(width, height int) *Widget {
	w.Width, w.Height = width, height
	return w
}

func (w *Widget) WithPosition(x, y int) *Widget {
	w.X, w.Y = x, y
	return w
}

type Tab struct {
	Name    string
	widgets []*Widget
}

// Add places s on the tab under name.  Tabs are laid out during start-up,
// before the control loop starts publishing.
func (t *Tab) Add(name string, s Sendable) *Widget {
	var b Builder
	s.InitSendable(&b)
	w := &Widget{Name: name, Width: 1, Height: 1, props: b.props}
	t.widgets = append(t.widgets, w)
	return w
}

// Value is one published property.
type Value struct {
	Widget  string
	Key     string
	Kind    Kind
	Double  float64
	Boolean bool
}

type Board struct {
	tabsLock sync.Mutex
	tabs     map[string]*Tab

	publishedLock sync.Mutex
	published     map[string][]Value
	cycle         uint64
}

func NewBoard() *Board {
	return &Board{
		tabs:      map[string]*Tab{},
		published: map[string][]Value{},
	}
}

// Tab returns the named tab, creating it if needed.
func (b *Board) Tab(name string) *Tab {
	b.tabsLock.Lock()
	defer b.tabsLock.Unlock()
	t, ok := b.tabs[name]
	if !ok {
		t = &Tab{Name: name}
		b.tabs[name] = t
	}
	return t
}

// TabNames returns the names of all tabs in sorted order.
func (b *Board) TabNames() []string {
	b.tabsLock.Lock()
	defer b.tabsLock.Unlock()
	var names []string
	for n := range b.tabs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Publish samples every property.  Must be called from the goroutine that
// owns the subsystems.
func (b *Board) Publish() {
	b.tabsLock.Lock()
	snapshot := map[string][]Value{}
	for name, t := range b.tabs {
		var values []Value
		for _, w := range t.widgets {
			for _, p := range w.props {
				v := Value{Widget: w.Name, Key: p.key, Kind: p.kind}
				switch p.kind {
				case KindDouble:
					v.Double = p.double()
				case KindBoolean:
					v.Boolean = p.boolean()
				}
				values = append(values, v)
			}
		}
		snapshot[name] = values
	}
	b.tabsLock.Unlock()

	b.publishedLock.Lock()
	b.published = snapshot
	b.cycle++
	b.publishedLock.Unlock()
}

// Latest returns the values most recently published for a tab, ordered by
// widget and then by key, and the number of the cycle that published them.
func (b *Board) Latest(tab string) ([]Value, uint64) {
	b.publishedLock.Lock()
	defer b.publishedLock.Unlock()
	values := append([]Value(nil), b.published[tab]...)
	sort.SliceStable(values, func(i, j int) bool {
		if values[i].Widget != values[j].Widget {
			return values[i].Widget < values[j].Widget
		}
		return values[i].Key < values[j].Key
	})
	return values, b.cycle
}
