package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Run     RunCommand     `command:"run" description:"Connect the transports and drive the legs"`
	Console ConsoleCommand `command:"console" description:"Drive the legs from the keyboard"`
	Servo   ServoCommand   `command:"servo" description:"Hold one channel at a pulse width for calibration"`
	Zero    ZeroCommand    `command:"zero" description:"Drive every servo channel to zero duty and exit"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Hexapod gait controller for PCA9685 driven servo legs"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
