package sensor

import (
	"context"
	"fmt"
)

const (
	mcp3008Channels  = 8
	mcp3008FrameSize = 3
)

// Transceiver performs one full-duplex transfer and returns what was clocked in.
type Transceiver interface {
	Xfer(w []byte) ([]byte, error)
}

// MCP3008 is the 10-bit, 8-channel SPI ADC the gas sensor is wired to.
type MCP3008 struct {
	bus Transceiver
}

func NewMCP3008(bus Transceiver) *MCP3008 {
	return &MCP3008{bus: bus}
}

func (m *MCP3008) ReadGasChannel(ctx context.Context, channel int) (int, error) {
	if channel < 0 || channel >= mcp3008Channels {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidChannel, channel)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// start bit, single-ended mode + channel select, padding
	req := []byte{0x01, byte(8+channel) << 4, 0x00}

	resp, err := m.bus.Xfer(req)
	if err != nil {
		return 0, fmt.Errorf("failed to transfer spi frame: %w", err)
	}

	if len(resp) < mcp3008FrameSize {
		return 0, fmt.Errorf("%w: %v", ErrShortResponse, resp)
	}

	return int(resp[1]&0x03)<<8 | int(resp[2]), nil
}
