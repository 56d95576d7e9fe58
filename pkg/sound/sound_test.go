package sound

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.viam.com/rdk/logging"
)

func TestPlayQueuesFullPath(t *testing.T) {
	p := newPlayer("/sounds", logging.NewTestLogger(t))
	played := make(chan string, 4)
	go p.loop(func(path string) error {
		played <- path
		if path == "/sounds/bad.wav" {
			return errors.New("bad wav")
		}
		return nil
	})
	defer p.Close()

	p.Play("bad.wav")
	p.Play("teleop.wav")
	assert.Equal(t, "/sounds/bad.wav", <-played)
	assert.Equal(t, "/sounds/teleop.wav", <-played)
}

func TestPlayNeverBlocks(t *testing.T) {
	p := newPlayer("/sounds", logging.NewTestLogger(t))
	start := time.Now()
	p.Play("nobody-listening.wav")
	assert.Less(t, time.Since(start), time.Second)

	p.Close()
	p.Close()
	p.Play("closed.wav")
}

func TestNoSpeaker(t *testing.T) {
	p := newPlayer("/sounds", logging.NewTestLogger(t))
	done := make(chan struct{})
	go func() {
		p.loop(nil)
		close(done)
	}()
	p.Play("x.wav")
	p.Close()
	<-done
}
