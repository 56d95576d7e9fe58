package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/bot"
	"github.com/Auyushg/Robonauts-2023/pkg/config"
	"github.com/Auyushg/Robonauts-2023/pkg/datalog"
	"github.com/Auyushg/Robonauts-2023/pkg/esc"
	"github.com/Auyushg/Robonauts-2023/pkg/joystick"
	"github.com/Auyushg/Robonauts-2023/pkg/motor"
	"github.com/Auyushg/Robonauts-2023/pkg/oi"
	"github.com/Auyushg/Robonauts-2023/pkg/prefs"
	"github.com/Auyushg/Robonauts-2023/pkg/rdkmotor"
	"github.com/Auyushg/Robonauts-2023/pkg/screen"
	"github.com/Auyushg/Robonauts-2023/pkg/sound"
	"github.com/Auyushg/Robonauts-2023/pkg/vesc"
)

func main() {
	fmt.Print("---- Robonauts 118 ----\n\n")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))
	logger := logging.NewLogger("robot")

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		logger.Infof("Signal: %v", s)
		cancel()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()

	cfgPath := config.PathFromEnv()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warnf("Using default config: %v", err)
	}
	if dev := os.Getenv("JOYSTICK_DEVICE"); dev != "" {
		cfg.Joystick = dev
	}
	// Write out the config that we are using.
	if err := cfg.WriteInUse(config.DefaultInUsePath); err != nil {
		logger.Warnf("Failed to write in-use config: %v", err)
	}

	roller, closeRoller := openRoller(ctx, cfg.Roller, logger.Sublogger("roller"))
	defer closeRoller()

	var dataLog bot.DataLog
	if cfg.DataLogDir != "" {
		l, err := datalog.Create(cfg.DataLogDir, logger.Sublogger("datalog"))
		if err != nil {
			logger.Warnf("Data logging disabled: %v", err)
		} else {
			logger.Infof("Data log session %s", l.Session())
			defer l.Close()
			dataLog = l
		}
	}

	player := sound.New(cfg.SoundDir, logger.Sublogger("sound"))
	defer player.Close()

	panel := oi.NewPanel()
	b, err := bot.New(bot.Options{
		Config:      cfg,
		Motor:       roller,
		Panel:       panel,
		Preferences: prefs.Load(cfg.Preferences, logger.Sublogger("prefs")),
		Sound:       player,
		DataLog:     dataLog,
		Logger:      logger,
	})
	if err != nil {
		logger.Errorf("Failed to build robot: %v", err)
		return
	}

	var wg sync.WaitGroup
	if cfg.Framebuffer != "" {
		s := &screen.Screen{
			Board:  b.Board,
			Tab:    cfg.DashboardTab,
			Gauge:  &screen.Gauge{Label: "A", Value: rollerCurrentGauge(b, cfg)},
			Logger: logger.Sublogger("screen"),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Loop(ctx, cfg.Framebuffer)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		loopReadingJoystick(ctx, cfg.Joystick, panel, logger.Sublogger("joystick"))
	}()

	if err := b.Run(ctx); err != nil && err != context.Canceled {
		logger.Errorf("Control loop failed: %v", err)
	}
	cancel()
	if roller != nil {
		logger.Info("Zeroing roller")
		_ = roller.Set(0)
	}
	wg.Wait()
}

// rollerCurrentGauge reads roller current from the dashboard, which is safe
// to read off the control loop.
func rollerCurrentGauge(b *bot.Bot, cfg config.Robot) func() (float64, float64) {
	return func() (float64, float64) {
		values, _ := b.Board.Latest(cfg.DashboardTab)
		for _, v := range values {
			if v.Key == "03. roller_current" {
				return v.Double, cfg.Roller.InrushCurrentLimit
			}
		}
		return 0, cfg.Roller.InrushCurrentLimit
	}
}

// openRoller opens the configured roller driver.  On failure the robot runs
// without a roller rather than not at all.
func openRoller(ctx context.Context, cfg config.Roller, logger logging.Logger) (motor.Interface, func()) {
	noop := func() {}
	switch cfg.Driver {
	case config.DriverVESC:
		m, err := vesc.Open(cfg.VESC, logger)
		if err != nil {
			logger.Warnf("Failed to open VESC, running without roller: %v", err)
			return nil, noop
		}
		if err := m.Ping(); err != nil {
			logger.Warnf("Failed to ping VESC: %v", err)
		}
		return m, func() { _ = m.Close() }
	case config.DriverESC:
		e, err := esc.New(cfg.ESC, logger)
		if err != nil {
			logger.Warnf("Failed to set up ESC, running without roller: %v", err)
			return nil, noop
		}
		escCtx, cancel := context.WithCancel(ctx)
		var initDone, done sync.WaitGroup
		initDone.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			e.Loop(escCtx, &initDone)
		}()
		initDone.Wait()
		return e, func() {
			cancel()
			done.Wait()
		}
	case config.DriverViamFake:
		r, err := rdkmotor.NewFake(ctx, cfg.MaxRPM, logger)
		if err != nil {
			logger.Warnf("Failed to create fake motor: %v", err)
			return nil, noop
		}
		return r, noop
	case config.DriverSim:
		sim := motor.NewSim()
		simCtx, cancel := context.WithCancel(ctx)
		go stepSim(simCtx, sim)
		return sim, cancel
	}
	logger.Info("No roller configured")
	return nil, noop
}

func stepSim(ctx context.Context, sim *motor.Sim) {
	const dt = 5 * time.Millisecond
	ticker := time.NewTicker(dt)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sim.Step(dt)
		}
	}
}

// loopReadingJoystick feeds joystick events to the panel, reopening the
// device if it goes away.  The robot keeps running without a joystick.
func loopReadingJoystick(ctx context.Context, device string, panel *oi.Panel, logger logging.Logger) {
	for ctx.Err() == nil {
		j, err := joystick.NewJoystick(device)
		if err != nil {
			logger.Debugf("Failed to open joystick: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		logger.Infof("Opened joystick %s", device)

		events := make(chan *joystick.Event)
		stop := make(chan struct{})
		go func() {
			err := joystick.Loop(ctx, j, events)
			if ctx.Err() == nil {
				logger.Warnf("Joystick failed: %v", err)
			}
		}()
		go func() {
			// Unblocks the read on shutdown.
			select {
			case <-ctx.Done():
				_ = j.Close()
			case <-stop:
			}
		}()
		for event := range events {
			panel.OnJoystickEvent(event)
		}
		close(stop)
		_ = j.Close()
	}
}
