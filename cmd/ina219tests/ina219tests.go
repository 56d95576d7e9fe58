package main

import (
	"fmt"
	"time"

	"github.com/Auyushg/Robonauts-2023/pkg/config"
	"github.com/Auyushg/Robonauts-2023/pkg/ina219"
	"github.com/Auyushg/Robonauts-2023/pkg/mux"
)

// Reads the roller ESC's current sensor using the robot's config.
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

		err = mx.SelectSinglePort(escCfg.MuxPort)
		if err != nil {
			fmt.Println("Failed to select mux port", err)
			return
		}
	}

	sensor, err := ina219.NewI2C(escCfg.I2CBus, escCfg.INA219Addr)
	if err != nil {
		fmt.Println("Failed to open ina219", err)
		return
	}

	err = sensor.Configure(escCfg.ShuntOhms, escCfg.MaxCurrent)
	if err != nil {
		fmt.Println("Failed to configure ina219", err)
		return
	}
	fmt.Printf("INA219 calibration value: 0x%x\n", sensor.CalibrationValue(escCfg.ShuntOhms))

	for range time.NewTicker(500 * time.Millisecond).C {
		voltage, err := sensor.ReadBusVoltage()
		fmt.Printf("%.2fV %v ", voltage, err)
		current, err := sensor.ReadCurrent()
		fmt.Printf("%.3fA %v ", current, err)
		power, err := sensor.ReadPower()
		fmt.Printf("%.3fW %v\n", power, err)
	}
}
