// Package sound plays short wav cues through the speaker.
package sound

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

const queueTimeout = 10 * time.Millisecond

// Player plays one sound at a time; starting a new sound cuts off the old.
type Player struct {
	dir    string
	logger logging.Logger
	sounds chan string
	done   chan struct{}

	closeOnce sync.Once
}

// New starts a player for the wav files in dir.  If the speaker can't be
// opened every Play is just logged.
func New(dir string, logger logging.Logger) *Player {
	p := newPlayer(dir, logger)
	go p.loop(newSpeaker(logger))
	return p
}

func newPlayer(dir string, logger logging.Logger) *Player {
	return &Player{
		dir:    dir,
		logger: logger,
		sounds: make(chan string),
		done:   make(chan struct{}),
	}
}

// Play queues name (relative to the sound directory) without blocking the
// caller for more than a few milliseconds.
func (p *Player) Play(name string) {
	path := filepath.Join(p.dir, name)
	select {
	case p.sounds <- path:
	case <-p.done:
		p.logger.Debugf("Player closed, not playing %s", path)
	case <-time.After(queueTimeout):
		p.logger.Infof("Timed out trying to play sound: %s", path)
	}
}

func (p *Player) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

type backend func(path string) error

func (p *Player) loop(play backend) {
	for {
		select {
		case <-p.done:
			return
		case path := <-p.sounds:
			if play == nil {
				p.logger.Infof("Unable to play %s", path)
				continue
			}
			if err := play(path); err != nil {
				p.logger.Warnf("Failed to play sound: %v", err)
			}
		}
	}
}

// newSpeaker opens the speaker and returns a backend for it, or nil if there
// is no speaker.
func newSpeaker(logger logging.Logger) backend {
	sampleRate := beep.SampleRate(44100)
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/5)); err != nil {
		logger.Infof("Failed to open speaker: %v", err)
		return nil
	}
	var ctrl *beep.Ctrl
	var s beep.StreamSeekCloser
	return func(path string) error {
		if ctrl != nil {
			speaker.Lock()
			ctrl.Paused = true
			ctrl.Streamer = nil
			speaker.Unlock()
			ctrl = nil
		}
		if s != nil {
			s.Close()
			s = nil
		}

		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "opening sound")
		}
		s, _, err = wav.Decode(f)
		if err != nil {
			f.Close()
			return errors.Wrapf(err, "decoding %s", path)
		}
		ctrl = &beep.Ctrl{Streamer: s}
		speaker.Play(ctrl)
		return nil
	}
}
