// Package screen draws a dashboard tab on the 128x128 TFT hat, driven through
// its RGB565 framebuffer.
package screen

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/dashboard"
)

const (
	S             = 128
	DefaultDevice = "/dev/fb1"
	RefreshPeriod = 250 * time.Millisecond

	rowHeight = 12
)

// Gauge is a bar drawn along the bottom of the screen, e.g. roller current
// against its limit.
type Gauge struct {
	Label string
	Value func() (value, max float64)
}

type Screen struct {
	Board  *dashboard.Board
	Tab    string
	Gauge  *Gauge
	Logger logging.Logger
}

// Loop redraws the screen until ctx is done, then blanks it.  A missing
// framebuffer is not an error; the robot just runs headless.
func (s *Screen) Loop(ctx context.Context, device string) {
	f, err := os.OpenFile(device, os.O_RDWR, 0666)
	if err != nil {
		s.Logger.Infof("Failed to open screen %s, ignoring: %v", device, err)
		return
	}
	defer f.Close()

	ticker := time.NewTicker(RefreshPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			var buf [S * S * 2]byte
			_ = write(f, buf[:])
			return
		case <-ticker.C:
		}
		if err := write(f, ToRGB565(s.Render())); err != nil {
			s.Logger.Warnf("Screen failure: %v", err)
			return
		}
	}
}

func write(f io.WriteSeeker, buf []byte) error {
	if _, err := f.Seek(0, 0); err != nil {
		return errors.Wrap(err, "seeking framebuffer")
	}
	// The display's SPI driver drops data if written in one go.
	for i := 0; i < len(buf); i += 2 * S {
		if _, err := f.Write(buf[i : i+2*S]); err != nil {
			return errors.Wrap(err, "writing framebuffer")
		}
		time.Sleep(10 * time.Microsecond)
	}
	return nil
}

// Render draws the tab's latest values.
func (s *Screen) Render() image.Image {
	values, cycle := s.Board.Latest(s.Tab)

	dc := gg.NewContext(S, S)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGBA(1, 0.9, 0, 1)
	dc.DrawString(fmt.Sprintf("%s #%d", s.Tab, cycle), 2, 10)

	y := 10.0 + rowHeight
	for _, v := range values {
		if y > S-30 {
			break
		}
		dc.DrawString(shortKey(v.Key), 2, y)
		dc.DrawStringAnchored(formatValue(v), S-2, y, 1, 0)
		y += rowHeight
	}

	if s.Gauge != nil {
		value, max := s.Gauge.Value()
		drawGauge(dc, s.Gauge.Label, value, max)
	}
	return dc.Image()
}

// shortKey drops the "01. " ordering prefix.
func shortKey(key string) string {
	if i := strings.Index(key, ". "); i >= 0 && i <= 3 {
		return key[i+2:]
	}
	return key
}

func formatValue(v dashboard.Value) string {
	if v.Kind == dashboard.KindBoolean {
		if v.Boolean {
			return "yes"
		}
		return "no"
	}
	return fmt.Sprintf("%.2f", v.Double)
}

func drawGauge(dc *gg.Context, label string, value, max float64) {
	fraction := 0.0
	if max > 0 {
		fraction = value / max
	}
	if fraction < 0 {
		fraction = -fraction
	}
	if fraction > 1 {
		fraction = 1
	}

	// Colour depends on how close to the limit we are.
	if fraction > 0.9 {
		DrawWarning(dc)
		dc.SetRGBA(1, 0.2, 0, 1)
	} else {
		dc.SetRGBA(1, 0.9, 0, 1)
	}
	dc.DrawRectangle(2, S-14, S-4, 10)
	dc.Stroke()
	dc.DrawRectangle(4, S-12, (S-8)*fraction, 6)
	dc.Fill()
	dc.DrawString(fmt.Sprintf("%s %.1f/%.0f", label, value, max), 2, S-18)
}

func DrawWarning(dc *gg.Context) {
	dc.Push()
	dc.Translate(S-10, 30)
	dc.SetRGB(1, 0.2, 0)
	dc.DrawRegularPolygon(3, 0, 0, 8, 0)
	dc.Fill()
	dc.SetRGBA(0, 0, 0, 0.9)
	dc.DrawString("!", -2, 3)
	dc.Pop()
}

// ToRGB565 converts a 128x128 image to the framebuffer's layout: little
// endian RGB565, rotated to match how the display is mounted.
func ToRGB565(img image.Image) []byte {
	buf := make([]byte, S*S*2)
	for y := 0; y < S; y++ {
		for x := 0; x < S; x++ {
			c := img.At(x, y)
			r, g, b, _ := c.RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(S-1-y)*2+x*S*2+1] = (rb << 3) | (gb >> 3)
			buf[(S-1-y)*2+x*S*2] = bb | (gb << 5)
		}
	}
	return buf
}
