// Package prefs is a small persistent key/value store for values that are
// tuned on the robot and must survive a restart, kept as a flat yaml map.
package prefs

import (
	"io/ioutil"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	yaml "gopkg.in/yaml.v2"
)

type Store struct {
	lock   sync.Mutex
	path   string
	values map[string]interface{}
	logger logging.Logger
}

// Load reads the store at path.  A missing or unreadable file gives an empty
// store; a later Set will create it.
func Load(path string, logger logging.Logger) *Store {
	s := &Store{
		path:   path,
		values: map[string]interface{}{},
		logger: logger,
	}
	if path == "" {
		return s
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("Failed to read preferences %s: %v", path, err)
		}
		return s
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		logger.Warnf("Ignoring malformed preferences %s: %v", path, err)
		s.values = map[string]interface{}{}
	}
	return s
}

// NewMemory returns a store that is never written to disk.
func NewMemory(logger logging.Logger) *Store {
	return Load("", logger)
}

func (s *Store) ContainsKey(key string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.values[key]
	return ok
}

// GetDouble returns the value stored under key, or def if the key is missing
// or does not hold a number.
func (s *Store) GetDouble(key string, def float64) float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	switch v := s.values[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	if _, ok := s.values[key]; ok {
		s.logger.Warnf("Preference %s is not a number, using %v", key, def)
	}
	return def
}

func (s *Store) GetBoolean(key string, def bool) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if v, ok := s.values[key].(bool); ok {
		return v
	}
	return def
}

func (s *Store) SetDouble(key string, value float64) {
	s.set(key, value)
}

func (s *Store) SetBoolean(key string, value bool) {
	s.set(key, value)
}

func (s *Store) set(key string, value interface{}) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values[key] = value
	if err := s.saveLocked(); err != nil {
		s.logger.Warnf("Failed to save preferences: %v", err)
	}
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return errors.Wrap(err, "marshalling preferences")
	}
	tmp := s.path + ".tmp"
	if err := ioutil.WriteFile(tmp, data, 0666); err != nil {
		return errors.Wrapf(err, "writing %s", tmp)
	}
	return errors.Wrap(os.Rename(tmp, s.path), "replacing preferences file")
}
