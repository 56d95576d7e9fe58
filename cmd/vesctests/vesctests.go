package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/config"
	"github.com/Auyushg/Robonauts-2023/pkg/motor"
	"github.com/Auyushg/Robonauts-2023/pkg/vesc"
)

// Interactive shell for bench testing the roller VESC.
var CLI struct {
	Quit   QuitCmd   `cmd:"" help:"Zero the roller and quit."`
	Status StatusCmd `cmd:"" help:"Print the latest status."`
	Ping   PingCmd   `cmd:"" help:"Check the VESC is reporting status."`
	Duty   DutyCmd   `cmd:"" help:"Run at a duty cycle for a while."`
	Limit  LimitCmd  `cmd:"" help:"Set the current limit."`
	Brake  BrakeCmd  `cmd:"" help:"Enable or disable brake mode."`
}

type Context struct {
	vesc *vesc.Motor
	cfg  vesc.Config
}

var Quit = errors.New("Quit")

type QuitCmd struct{}

func (q *QuitCmd) Run(ctx *Context) error {
	return Quit
}

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *Context) error {
	printStatus(ctx)
	return nil
}

type PingCmd struct{}

func (c *PingCmd) Run(ctx *Context) error {
	return ctx.vesc.Ping()
}

type DutyCmd struct {
	Duty float64       `arg:"" help:"Duty cycle, -1 to 1."`
	For  time.Duration `default:"2s" help:"How long to run for."`
}

func (c *DutyCmd) Run(ctx *Context) error {
	defer ctx.vesc.Set(0)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	end := time.Now().Add(c.For)
	for time.Now().Before(end) {
		// The VESC stops the motor if commands stop arriving.
		if err := ctx.vesc.Set(c.Duty); err != nil {
			return err
		}
		<-ticker.C
		printStatus(ctx)
	}
	return nil
}

type LimitCmd struct {
	Amps float64 `arg:"" help:"Current limit in amps."`
}

func (c *LimitCmd) Run(ctx *Context) error {
	return ctx.vesc.SetCurrentLimit(c.Amps, c.Amps, 0)
}

type BrakeCmd struct {
	On bool `arg:"" help:"true for brake, false for coast."`
}

func (c *BrakeCmd) Run(ctx *Context) error {
	return ctx.vesc.SetBrakeMode(c.On)
}

func printStatus(ctx *Context) {
	s := ctx.vesc.Status()
	rpm := 0.0
	if ctx.cfg.PolePairs > 0 {
		rpm = float64(s.ERPM) / float64(ctx.cfg.PolePairs)
	}
	fmt.Printf("alive=%v rpm=%.0f current=%.1fA duty=%.3f fet=%.1fC motor=%.1fC in=%.1fV\n",
		ctx.vesc.Alive(), rpm, s.Current, s.DutyCycle, s.FETTemp, s.MotorTemp, s.InputVoltage)
}

func main() {
	fmt.Println("---- vesctests ----")

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		fmt.Println("Config error, using defaults:", err)
	}

	k, err := kong.New(&CLI)
	if err != nil {
		panic(err)
	}

	m, err := vesc.Open(cfg.Roller.VESC, logging.NewLogger("vesctests"))
	if err != nil {
		fmt.Println("Failed to open VESC:", err)
		os.Exit(1)
	}
	defer m.Close()
	if err := m.SetControlMode(motor.DutyCycle); err != nil {
		fmt.Println("Failed to set control mode:", err)
	}

	ctx := &Context{vesc: m, cfg: cfg.Roller.VESC}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println("Enter a command:")
		if !scanner.Scan() {
			break
		}
		command := strings.TrimSpace(scanner.Text())
		if command == "" {
			continue
		}
		parsed, err := k.Parse(strings.Fields(command))
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		err = parsed.Run(ctx)
		if err == Quit {
			break
		} else if err != nil {
			fmt.Println("ERROR:", err)
			continue
		}
	}
	m.Set(0)
}
