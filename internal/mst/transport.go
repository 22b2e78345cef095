//go:build linux

package mst

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// mcuI2CAddr is the 7-bit I2C peripheral address the RTD2142 answers on
// while the ISP/register interface is active.
const mcuI2CAddr = 0x35

const i2cSlaveIOCTL = 0x0703 // I2C_SLAVE

// maxOpsPerSec caps the rate of raw I2C transactions issued against the hub.
// Flash programming issues thousands of small register writes back to back;
// without a limiter a fast host can outrun the embedded MCU's ability to
// service the bus, producing spurious NAKs.
const maxOpsPerSec = 2000

// Transport is the minimal I2C primitive the register layer is built on.
// The hub latches the last-written register address, so a combined
// I2C_RDWR transaction is not required: a sequential write followed by a
// read on the same open handle is sufficient.
type Transport interface {
	Write(b []byte) error
	Read(n int) ([]byte, error)
	Close() error
}

// I2CTransport is the real transport, a single open /dev/i2c-N handle with
// the peripheral address latched via the I2C_SLAVE ioctl.
type I2CTransport struct {
	mu      sync.Mutex
	fd      int
	path    string
	limiter *rate.Limiter
}

// OpenI2C opens path read-write and selects mcuI2CAddr as the active slave.
func OpenI2C(path string) (*I2CTransport, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("mst: open %s: %w", path, err)
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), i2cSlaveIOCTL, uintptr(mcuI2CAddr)); errno != 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("mst: set I2C_SLAVE 0x%02x on %s: %w", mcuI2CAddr, path, errno)
	}
	return &I2CTransport{
		fd:      fd,
		path:    path,
		limiter: rate.NewLimiter(rate.Limit(maxOpsPerSec), 10),
	}, nil
}

func (t *I2CTransport) Write(b []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fd < 0 {
		return fmt.Errorf("mst: transport closed")
	}
	_ = t.limiter.Wait(context.Background())
	n, err := unix.Write(t.fd, b)
	if err != nil {
		return fmt.Errorf("mst: i2c write %s: %w", t.path, err)
	}
	if n != len(b) {
		return fmt.Errorf("mst: i2c write %s: short write %d/%d bytes", t.path, n, len(b))
	}
	return nil
}

func (t *I2CTransport) Read(n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fd < 0 {
		return nil, fmt.Errorf("mst: transport closed")
	}
	_ = t.limiter.Wait(context.Background())
	buf := make([]byte, n)
	got, err := unix.Read(t.fd, buf)
	if err != nil {
		return nil, fmt.Errorf("mst: i2c read %s: %w", t.path, err)
	}
	if got != n {
		return nil, fmt.Errorf("mst: i2c read %s: short read %d/%d bytes", t.path, got, n)
	}
	return buf, nil
}

func (t *I2CTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fd < 0 {
		return nil
	}
	err := unix.Close(t.fd)
	t.fd = -1
	return err
}

// openI2CTransport is the default TransportOpener used by NewDevice.
func openI2CTransport(path string) (Transport, error) {
	return OpenI2C(path)
}
