package gpio

import (
	"fmt"
	"io"

	"github.com/warthog618/go-gpiocdev"
)

// cdevChip drives lines through the GPIO character device ABI.
type cdevChip struct {
	chip *gpiocdev.Chip
}

// OpenCdev opens a GPIO chip such as "gpiochip0" or "/dev/gpiochip0".
// consumer labels every line request in gpioinfo output.
func OpenCdev(name, consumer string) (Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &cdevChip{chip: chip}, nil
}

func (c *cdevChip) Name() string {
	return c.chip.Name
}

func (c *cdevChip) Output(offset, initial int) (Output, error) {
	line, err := c.chip.RequestLine(offset, gpiocdev.AsOutput(initial))
	if err != nil {
		return nil, fmt.Errorf("request output line %d: %w", offset, err)
	}
	return line, nil
}

func (c *cdevChip) Input(offset int) (Input, error) {
	line, err := c.chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request input line %d: %w", offset, err)
	}
	return line, nil
}

func (c *cdevChip) Watch(offset int, handler EdgeHandler) (io.Closer, error) {
	line, err := c.chip.RequestLine(offset,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			level := Low
			if evt.Type == gpiocdev.LineEventRisingEdge {
				level = High
			}
			handler(Edge{Offset: evt.Offset, Level: level, Time: evt.Timestamp})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("watch line %d: %w", offset, err)
	}
	return line, nil
}

func (c *cdevChip) Close() error {
	return c.chip.Close()
}
