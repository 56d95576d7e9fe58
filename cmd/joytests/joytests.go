package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Auyushg/Robonauts-2023/pkg/config"
	"github.com/Auyushg/Robonauts-2023/pkg/joystick"
	"github.com/Auyushg/Robonauts-2023/pkg/oi"
)

// Prints the logical button edges the robot's button mapping produces, and
// optionally the raw joystick events behind them.
func main() {
	raw := flag.Bool("raw", false, "print raw joystick events too")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		fmt.Println("Using default button mapping:", err)
	}
	panel := oi.NewPanel()
	if err := panel.MapAll(cfg.Buttons); err != nil {
		fmt.Println("Bad button mapping:", err)
		os.Exit(1)
	}
	names := panel.Names()
	for _, name := range names {
		fmt.Printf("%-14s %s\n", name, strings.Join(cfg.Buttons[name], ", "))
	}

	device := joystick.DeviceFromEnv()
	var j *joystick.Joystick
	for j == nil {
		j, err = joystick.NewJoystick(device)
		if err == nil {
			break
		}
		fmt.Printf("Waiting for joystick: %v.\n", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
	fmt.Println("Opened", device)
	go func() {
		<-ctx.Done()
		j.Close()
	}()

	events := make(chan *joystick.Event)
	go func() {
		if err := joystick.Loop(ctx, j, events); err != nil && ctx.Err() == nil {
			fmt.Println("Joystick failed:", err)
		}
	}()

	for e := range events {
		if *raw {
			fmt.Println(e)
		}
		panel.OnJoystickEvent(e)
		for _, name := range names {
			b := panel.Button(name)
			if b.Pressed() {
				fmt.Printf("%s %s pressed\n", e.Time.Format("15:04:05.000"), name)
			}
			if b.Released() {
				fmt.Printf("%s %s released\n", e.Time.Format("15:04:05.000"), name)
			}
		}
	}
}
