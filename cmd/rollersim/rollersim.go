// rollersim drives the end effector against the simulated roller from the
// keyboard and charts roller current and velocity.
//
// Terminals only report key presses, so the roller buttons toggle between
// held and released; the rest are tapped.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/bot"
	"github.com/Auyushg/Robonauts-2023/pkg/config"
	"github.com/Auyushg/Robonauts-2023/pkg/dashboard"
	"github.com/Auyushg/Robonauts-2023/pkg/gamepiece"
	"github.com/Auyushg/Robonauts-2023/pkg/motor"
	"github.com/Auyushg/Robonauts-2023/pkg/oi"
	"github.com/Auyushg/Robonauts-2023/pkg/prefs"
)

const (
	chartHeight = 10
)

// Toggled keys hold their button down until pressed again.
var holdKeys = map[string]string{
	"i": "roller_in",
	"o": "roller_out",
	"s": "slurp",
	"p": "spit",
}

var tapKeys = map[string]string{
	"r":     "reset",
	"c":     "cone",
	"k":     "cube",
	"t":     "toggle_piece",
	"m":     "mode",
	"up":    "tune_up",
	"down":  "tune_down",
	"right": "tune_next",
	"left":  "tune_prev",
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	heldStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	limitStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

type sim struct {
	bot    *bot.Bot
	roller *motor.Sim
	panel  *oi.Panel
	period time.Duration
	tab    string
	held   map[string]bool
	loaded bool
}

// isCone reads the selection from the dashboard; the selector itself belongs
// to the control loop.
func (s *sim) isCone() bool {
	values, _ := s.bot.Board.Latest(s.tab)
	for _, v := range values {
		if v.Widget == "GamePiece" && v.Key == "cone" {
			return v.Boolean
		}
	}
	return false
}

type tickMsg time.Time

func (s *sim) tick() tea.Cmd {
	return tea.Tick(s.period, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	sim      *sim
	current  *streamlinechart.Model
	velocity *streamlinechart.Model
	width    int
	// Top of the current chart; the sim's limit is infinite until RobotInit.
	currentMax float64
}

func newModel(s *sim, inrushLimit float64) model {
	currentMax := inrushLimit + 5
	current := streamlinechart.New(80, chartHeight, streamlinechart.WithYRange(0, currentMax))
	current.SetDataSetStyles("current", runes.ThinLineStyle, lipgloss.NewStyle().Foreground(lipgloss.Color("196")))
	current.SetDataSetStyles("limit", runes.ThinLineStyle, lipgloss.NewStyle().Foreground(lipgloss.Color("208")))
	velocity := streamlinechart.New(80, chartHeight, streamlinechart.WithYRange(-motor.SimFreeSpeedRPM, motor.SimFreeSpeedRPM))
	velocity.SetDataSetStyles("velocity", runes.ThinLineStyle, lipgloss.NewStyle().Foreground(lipgloss.Color("51")))
	return model{sim: s, current: &current, velocity: &velocity, currentMax: currentMax}
}

func (m model) Init() tea.Cmd {
	return m.sim.tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 4
		if w < 40 {
			w = 40
		}
		m.current.Resize(w, chartHeight)
		m.velocity.Resize(w, chartHeight)
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "l":
			m.sim.loaded = !m.sim.loaded
			m.sim.roller.SetLoaded(m.sim.loaded)
		}
		if name, ok := holdKeys[key]; ok {
			m.sim.held[name] = !m.sim.held[name]
			m.sim.panel.Button(name).Set(m.sim.held[name])
		}
		if name, ok := tapKeys[key]; ok {
			b := m.sim.panel.Button(name)
			b.Set(true)
			b.Set(false)
		}
		return m, nil

	case tickMsg:
		roller := m.sim.roller
		current, _ := roller.OutputCurrent()
		rpm, _ := roller.Speed()
		m.current.PushDataSet("current", current)
		m.current.PushDataSet("limit", math.Min(roller.CurrentLimit(), m.currentMax))
		m.current.DrawAll()
		m.velocity.PushDataSet("velocity", rpm)
		m.velocity.DrawAll()
		return m, m.sim.tick()
	}
	return m, nil
}

func (m model) View() string {
	s := m.sim
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Roller sim"))
	piece := gamepiece.Cube
	if s.isCone() {
		piece = gamepiece.Cone
	}
	sb.WriteString(fmt.Sprintf("  %s  %s  limit ", s.bot.Robot.Mode(), piece))
	sb.WriteString(limitStyle.Render(fmt.Sprintf("%.0fA", s.roller.CurrentLimit())))
	if s.loaded {
		sb.WriteString(heldStyle.Render("  LOADED"))
	}
	sb.WriteString("\n")
	sb.WriteString(renderHeld(s.held))
	sb.WriteString("\n\n")

	sb.WriteString("Current (A)\n")
	sb.WriteString(chartStyle.Render(m.current.View()))
	sb.WriteString("\nVelocity (RPM)\n")
	sb.WriteString(chartStyle.Render(m.velocity.View()))
	sb.WriteString("\n")

	values, _ := s.bot.Board.Latest(s.tab)
	for _, v := range values {
		sb.WriteString(fmt.Sprintf("%-10s %-18s ", v.Widget, v.Key))
		if v.Kind == dashboard.KindBoolean {
			sb.WriteString(fmt.Sprintf("%v\n", v.Boolean))
		} else {
			sb.WriteString(fmt.Sprintf("%.3f\n", v.Double))
		}
	}
	sb.WriteString(statusStyle.Render(
		"\ni/o roller in/out  s/p slurp/spit  r reset  c/k/t cone/cube/toggle  m mode  l load  arrows tune  q quit"))
	return sb.String()
}

func renderHeld(held map[string]bool) string {
	var names []string
	for _, name := range holdKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	var items []string
	for _, name := range names {
		if held[name] {
			items = append(items, heldStyle.Render(name))
		} else {
			items = append(items, statusStyle.Render(name))
		}
	}
	return strings.Join(items, "  ")
}

func main() {
	logPath := flag.String("log", "rollersim.log", "file to write logs to")
	flag.Parse()

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Config error, using defaults:", err)
	}
	cfg.Roller.Driver = config.DriverSim

	logFile, err := os.Create(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create log:", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := logging.NewBlankLogger("rollersim")
	logger.AddAppender(logging.NewWriterAppender(logFile))

	s := &sim{
		roller: motor.NewSim(),
		panel:  oi.NewPanel(),
		period: cfg.Period,
		tab:    cfg.DashboardTab,
		held:   map[string]bool{},
	}
	s.bot, err = bot.New(bot.Options{
		Config:      cfg,
		Motor:       s.roller,
		Panel:       s.panel,
		Preferences: prefs.NewMemory(logger),
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to build robot:", err)
		os.Exit(1)
	}
	// The roller model advances in lock step with the control loop.
	s.bot.Robot.AfterCycle(func() { s.roller.Step(s.period) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.bot.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Control loop failed: %v", err)
		}
	}()

	p := tea.NewProgram(newModel(s, cfg.Roller.InrushCurrentLimit), tea.WithAltScreen())
	_, err = p.Run()
	cancel()
	<-done
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		os.Exit(1)
	}
}
