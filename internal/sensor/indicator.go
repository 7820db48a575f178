package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

type GPIOIndicator struct {
	pin gpio.PinIO
}

func OpenIndicator(name string) (*GPIOIndicator, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to init host drivers: %w", err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}

	return NewGPIOIndicator(pin)
}

// NewGPIOIndicator configures pin as an output, starting low.
func NewGPIOIndicator(pin gpio.PinIO) (*GPIOIndicator, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to configure %s as output: %w", pin, err)
	}
	return &GPIOIndicator{pin: pin}, nil
}

func (g *GPIOIndicator) Set(on bool) error {
	return g.pin.Out(gpio.Level(on))
}

// Close drives the pin low and releases it.
func (g *GPIOIndicator) Close() error {
	if err := g.pin.Out(gpio.Low); err != nil {
		return err
	}
	return g.pin.Halt()
}
