//go:build !linux

package mst

import "fmt"

// HardwareReset is unavailable off Linux; periph.io's host drivers only
// back real GPIO hardware there.
func HardwareReset(pinName string) error {
	if pinName == "" {
		return nil
	}
	return fmt.Errorf("mst: hardware reset requires linux")
}
