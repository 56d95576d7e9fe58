// Package scripting exposes subsystem operations to Lua.
//
// Subsystems describe their script-callable operations as a Table.  Each
// Table is registered as a class inside a namespace, so RobotControl and auton
// scripts call e.g. robonauts.end_effector.rollerIn().  Method syntax
// (robonauts.end_effector:rollerIn()) works too.
//
// Scripts run on their own goroutine.  Every call into Go goes through the
// engine's Dispatcher, which the robot uses to run the call on the control
// loop.
package scripting

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	lua "github.com/yuin/gopher-lua"
	"go.viam.com/rdk/logging"
)

// Method is one script-callable operation.  It takes Args numbers and, if
// Returns is set, returns one number.
type Method struct {
	Args    int
	Returns bool
	Call    func(args []float64) float64
}

// Action wraps an operation with no arguments and no result.
func Action(f func()) Method {
	return Method{Call: func([]float64) float64 { f(); return 0 }}
}

// Getter wraps an operation returning a number.
func Getter(f func() float64) Method {
	return Method{Returns: true, Call: func([]float64) float64 { return f() }}
}

// Setter2 wraps an operation taking two numbers.
func Setter2(f func(a, b float64)) Method {
	return Method{Args: 2, Call: func(args []float64) float64 { f(args[0], args[1]); return 0 }}
}

type Table map[string]Method

// Dispatcher runs fn somewhere safe and waits for it.
type Dispatcher func(ctx context.Context, fn func()) error

func direct(ctx context.Context, fn func()) error {
	fn()
	return nil
}

type class struct {
	namespace, name string
	table           Table
}

type Engine struct {
	logger   logging.Logger
	dispatch Dispatcher

	lock    sync.Mutex
	classes []class
}

// New returns an engine; a nil dispatcher calls straight into Go.
func New(logger logging.Logger, dispatch Dispatcher) *Engine {
	if dispatch == nil {
		dispatch = direct
	}
	return &Engine{logger: logger, dispatch: dispatch}
}

// Register makes t callable as namespace.name.
func (e *Engine) Register(namespace, name string, t Table) {
	e.logger.Infof("registering %s with lua", name)
	e.lock.Lock()
	e.classes = append(e.classes, class{namespace: namespace, name: name, table: t})
	e.lock.Unlock()
}

// Functions lists the registered functions as "namespace.class.function".
func (e *Engine) Functions() []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	var names []string
	for _, c := range e.classes {
		for fn := range c.table {
			names = append(names, c.namespace+"."+c.name+"."+fn)
		}
	}
	sort.Strings(names)
	return names
}

// NewState builds a Lua state with every registered class plus
// <namespace>.sleep(seconds).  The state is bound to ctx: cancelling ctx
// aborts the running script.
func (e *Engine) NewState(ctx context.Context) *lua.LState {
	L := lua.NewState()
	L.SetContext(ctx)

	e.lock.Lock()
	classes := append([]class(nil), e.classes...)
	e.lock.Unlock()

	namespaces := map[string]*lua.LTable{}
	for _, c := range classes {
		ns, ok := namespaces[c.namespace]
		if !ok {
			ns = L.NewTable()
			ns.RawSetString("sleep", L.NewFunction(sleep))
			namespaces[c.namespace] = ns
			L.SetGlobal(c.namespace, ns)
		}
		tbl := L.NewTable()
		for fnName, m := range c.table {
			tbl.RawSetString(fnName, L.NewFunction(e.wrap(c.name+"."+fnName, m)))
		}
		ns.RawSetString(c.name, tbl)
	}
	return L
}

func (e *Engine) wrap(name string, m Method) lua.LGFunction {
	return func(L *lua.LState) int {
		first := 1
		if L.GetTop() > 0 && L.Get(1).Type() == lua.LTTable {
			// Called with method syntax; skip self.
			first = 2
		}
		args := make([]float64, m.Args)
		for i := range args {
			args[i] = float64(L.CheckNumber(first + i))
		}

		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		var result float64
		err := e.dispatch(ctx, func() {
			result = m.Call(args)
		})
		if err != nil {
			L.RaiseError("%s: %v", name, err)
			return 0
		}
		if m.Returns {
			L.Push(lua.LNumber(result))
			return 1
		}
		return 0
	}
}

func sleep(L *lua.LState) int {
	d := time.Duration(float64(L.CheckNumber(1)) * float64(time.Second))
	ctx := L.Context()
	if ctx == nil {
		time.Sleep(d)
		return 0
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		L.RaiseError("sleep interrupted: %v", ctx.Err())
	}
	return 0
}

// RunString runs a chunk of Lua in a fresh state.
func (e *Engine) RunString(ctx context.Context, src string) error {
	L := e.NewState(ctx)
	defer L.Close()
	return errors.Wrap(L.DoString(src), "running lua")
}

// RunFile runs a Lua file in a fresh state.
func (e *Engine) RunFile(ctx context.Context, path string) error {
	L := e.NewState(ctx)
	defer L.Close()
	return errors.Wrapf(L.DoFile(path), "running %s", path)
}
