package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// SPIPort is an open SPI device. It must be closed on shutdown to release
// the bus.
type SPIPort struct {
	port spi.PortCloser
	conn spi.Conn
}

func OpenSPI(name string, speedHz int64) (*SPIPort, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to init host drivers: %w", err)
	}

	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open spi port %q: %w", name, err)
	}

	conn, err := port.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to configure spi port %q: %w", name, err)
	}

	return &SPIPort{port: port, conn: conn}, nil
}

func (s *SPIPort) Xfer(w []byte) ([]byte, error) {
	r := make([]byte, len(w))
	if err := s.conn.Tx(w, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SPIPort) String() string {
	return s.port.String()
}

func (s *SPIPort) Close() error {
	return s.port.Close()
}
