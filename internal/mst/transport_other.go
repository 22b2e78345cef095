//go:build !linux

package mst

import "fmt"

// Transport is the minimal I2C primitive the register layer is built on;
// transport.go holds the Linux definition and the real implementation.
type Transport interface {
	Write(b []byte) error
	Read(n int) ([]byte, error)
	Close() error
}

// openI2CTransport is unavailable off Linux; only the mock transport is
// usable for development on other platforms.
func openI2CTransport(path string) (Transport, error) {
	return nil, fmt.Errorf("mst: real I2C transport requires linux")
}
