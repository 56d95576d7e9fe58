package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Auyushg/Robonauts-2023/pkg/config"
	"github.com/Auyushg/Robonauts-2023/pkg/mux"
	"github.com/Auyushg/Robonauts-2023/pkg/pca9685"
)

// Drives the PCA9685 behind the roller ESC by hand, for calibrating the ESC's
// throttle range.
func main() {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		fmt.Println("Using default config:", err)
	}
	escCfg := cfg.Roller.ESC

	if escCfg.MuxPort != mux.NoPort {
		mx, err := mux.New(escCfg.I2CBus)
		if err != nil {
			fmt.Println("Failed to open mux", err)
			return
		}
		defer mx.Close()
		if err := mx.SelectSinglePort(escCfg.MuxPort); err != nil {
			fmt.Println("Failed to select mux port", err)
			return
		}
	}

	pwmController, err := pca9685.New(escCfg.I2CBus)
	if err != nil {
		fmt.Println("Failed to open PCA9685", err)
		return
	}
	defer pwmController.Close()

	err = pwmController.Configure()
	if err != nil {
		fmt.Println("Failed to configure PCA9685", err)
		return
	}

	fmt.Printf(`Commands:
    t <throttle>            # Roller throttle -1.0-1.0 on port %d
    s <n> <position>        # Configure port for servo
    p <n> <pwm-duty-cycle>  # Configure port for PWM
    q                       # Neutral and quit

<n>               Port number 0-%d
<position>        Servo position 0.0-1.0; 0.5=centre
<pwm-duty-cycle>  Raw PWM duty cycle 0.0-1.0; 0=fully off, 1.0=fully on
`, escCfg.PWMPort, pca9685.NumPorts-1)

	defer pwmController.SetThrottle(escCfg.PWMPort, 0)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "q":
			return
		case "t":
			if len(parts) < 2 {
				fmt.Println("Not enough parameters")
				continue
			}
			v, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				fmt.Println("Expected float, not ", parts[1])
				continue
			}
			if escCfg.Inverted {
				v = -v
			}
			fmt.Printf("Setting throttle to %f\n", v)
			if err := pwmController.SetThrottle(escCfg.PWMPort, v); err != nil {
				fmt.Println("Failed to write to PCA9685: ", err)
				return
			}
		case "s", "p":
			if len(parts) < 3 {
				fmt.Println("Not enough parameters")
				continue
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("Expected int, not ", parts[1])
				continue
			}
			v, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				fmt.Println("Expected float, not ", parts[2])
				continue
			}
			if parts[0] == "s" {
				fmt.Printf("Setting servo %d to %f\n", n, v)
				err = pwmController.SetServo(n, v)
			} else {
				fmt.Printf("Setting PWM %d to %f\n", n, v)
				err = pwmController.SetPWM(n, v)
			}
			if errors.Is(err, pca9685.ErrBadPort) {
				fmt.Println(err)
				continue
			} else if err != nil {
				fmt.Println("Failed to write to PCA9685: ", err)
				return
			}
		default:
			fmt.Println("Unknown command", parts[0])
		}
	}
}
