package display

import (
	"fmt"
	"image"
	"log"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

// OLED is a 128x64 SSD1306 panel on I2C
type OLED struct {
	canvas
	dev *ssd1306.Dev
	bus i2c.BusCloser
}

// OpenOLED opens the panel on the named I2C bus ("" for the first one)
func OpenOLED(busName string) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize I2C host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("no SSD1306 display found: %w", err)
	}

	o := &OLED{
		canvas: canvas{buf: image1bit.NewVerticalLSB(dev.Bounds())},
		dev:    dev,
		bus:    bus,
	}
	o.Clear()
	if err := o.Present(); err != nil {
		o.Close()
		return nil, err
	}

	log.Printf("Display: SSD1306 %dx%d initialized", o.Width(), o.Height())
	return o, nil
}

func (o *OLED) Present() error {
	if err := o.dev.Draw(o.dev.Bounds(), o.buf, image.Point{}); err != nil {
		return fmt.Errorf("failed to write display: %w", err)
	}
	return nil
}

func (o *OLED) Close() error {
	if err := o.dev.Halt(); err != nil {
		log.Printf("Display: halt failed: %v", err)
	}
	return o.bus.Close()
}
