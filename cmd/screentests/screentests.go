package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/dashboard"
	"github.com/Auyushg/Robonauts-2023/pkg/screen"
)

// fakeRoller publishes whatever values are typed in, e.g. "roller_current 12".
type fakeRoller struct {
	lock   sync.Mutex
	values map[string]float64
}

func (f *fakeRoller) InitSendable(b *dashboard.Builder) {
	var keys []string
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		k := k
		b.AddDoubleProperty(fmt.Sprintf("%02d. %s", i+1, k), func() float64 {
			f.lock.Lock()
			defer f.lock.Unlock()
			return f.values[k]
		})
	}
}

func (f *fakeRoller) set(key string, v float64) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	if _, ok := f.values[key]; !ok {
		return false
	}
	f.values[key] = v
	return true
}

func main() {
	ctx := context.Background()

	roller := &fakeRoller{values: map[string]float64{
		"roller_cmd":     0.8,
		"roller_dc":      0.8,
		"roller_current": 12,
		"roller_vel":     4500,
	}}
	board := dashboard.NewBoard()
	board.Tab("EndEffector").Add("Roller", roller)
	board.Publish()

	s := &screen.Screen{
		Board: board,
		Tab:   "EndEffector",
		Gauge: &screen.Gauge{Label: "A", Value: func() (float64, float64) {
			roller.lock.Lock()
			defer roller.lock.Unlock()
			return roller.values["roller_current"], 40
		}},
		Logger: logging.NewLogger("screentests"),
	}
	device := screen.DefaultDevice
	if len(os.Args) > 1 {
		device = os.Args[1]
	}
	go s.Loop(ctx, device)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			fmt.Println("Usage: <key> <value>")
			continue
		}
		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			fmt.Println("Bad value:", err)
			continue
		}
		if !roller.set(parts[0], v) {
			fmt.Println("Unknown key", parts[0])
			continue
		}
		board.Publish()
	}
}
