// Package datalog records subsystem variables once per cycle so a match can
// be replayed afterwards.
//
// A log is a CBOR stream: one Header naming the variables, then one Record
// per cycle holding their values in the same order.
package datalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create datalog CBOR encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create datalog CBOR decoder mode: %v", err))
	}
}

type Header struct {
	Session string    `cbor:"1,keyasint"`
	Started time.Time `cbor:"2,keyasint"`
	Vars    []string  `cbor:"3,keyasint"`
}

type Record struct {
	// Nanoseconds since Header.Started.
	Elapsed int64     `cbor:"1,keyasint"`
	Values  []float64 `cbor:"2,keyasint"`
}

type logVar struct {
	name string
	get  func() float64
}

var ErrClosed = errors.New("data log closed")

type Log struct {
	logger logging.Logger

	lock    sync.Mutex
	w       io.WriteCloser
	enc     *cbor.Encoder
	vars    []logVar
	header  *Header
	closed  bool
	failed  bool
	session uuid.UUID
	records int
}

// New returns a log writing to w.
func New(w io.WriteCloser, logger logging.Logger) *Log {
	return &Log{
		logger:  logger,
		w:       w,
		enc:     encMode.NewEncoder(w),
		session: uuid.New(),
	}
}

// Create opens a new log file in dir named after the session.
func Create(dir string, logger logging.Logger) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating log dir %s", dir)
	}
	session := uuid.New()
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.cbor", time.Now().Format("20060102-150405"), session))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "creating data log")
	}
	logger.Infof("Data log: %s", path)
	l := New(f, logger)
	l.session = session
	return l, nil
}

func (l *Log) Session() string {
	return l.session.String()
}

// AddLogVar registers a variable.  Variables added after the first Write are
// ignored, since the header is already out.
func (l *Log) AddLogVar(name string, get func() float64) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.header != nil {
		l.logger.Warnf("Data log: ignoring %s, added after logging started", name)
		return
	}
	l.vars = append(l.vars, logVar{name: name, get: get})
}

// Write samples every variable.  Call it from the goroutine that owns them.
func (l *Log) Write(now time.Time) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.header == nil {
		h := &Header{Session: l.session.String(), Started: now}
		for _, v := range l.vars {
			h.Vars = append(h.Vars, v.name)
		}
		if err := l.encode(h); err != nil {
			return err
		}
		l.header = h
	}
	rec := Record{
		Elapsed: now.Sub(l.header.Started).Nanoseconds(),
		Values:  make([]float64, len(l.vars)),
	}
	for i, v := range l.vars {
		rec.Values[i] = v.get()
	}
	if err := l.encode(rec); err != nil {
		return err
	}
	l.records++
	return nil
}

// encode writes v; only the first failure is logged so a full disk doesn't
// flood the console every cycle.
func (l *Log) encode(v interface{}) error {
	err := l.enc.Encode(v)
	if err != nil && !l.failed {
		l.failed = true
		l.logger.Warnf("Data log write failed: %v", err)
	} else if err == nil {
		l.failed = false
	}
	return errors.Wrap(err, "writing data log")
}

func (l *Log) Records() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.records
}

func (l *Log) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.w.Close()
}

type Reader struct {
	Header Header
	dec    *cbor.Decoder
}

// NewReader reads the header of a log.
func NewReader(r io.Reader) (*Reader, error) {
	rd := &Reader{dec: decMode.NewDecoder(r)}
	if err := rd.dec.Decode(&rd.Header); err != nil {
		return nil, errors.Wrap(err, "reading data log header")
	}
	return rd, nil
}

// Next returns the next record, or io.EOF.
func (r *Reader) Next() (Record, error) {
	var rec Record
	err := r.dec.Decode(&rec)
	if err == io.EOF {
		return rec, io.EOF
	}
	return rec, errors.Wrap(err, "reading data log record")
}

// Values returns the record's values keyed by variable name.
func (r *Reader) Values(rec Record) map[string]float64 {
	m := make(map[string]float64, len(rec.Values))
	for i, v := range rec.Values {
		if i < len(r.Header.Vars) {
			m[r.Header.Vars[i]] = v
		}
	}
	return m
}
