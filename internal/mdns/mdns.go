// Package mdns registers this daemon's HTTP status surface as an mDNS/DNS-SD
// service, so host tooling can find a running rtd2142fw on the LAN without
// being told its address.
package mdns

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grandcat/zeroconf"

	"github.com/dpmst/rtd2142fw/internal/models"
)

// Service manages mDNS service registration for one running daemon.
type Service struct {
	name string // instance name, e.g. the host's hostname
	port int

	server *zeroconf.Server
}

// New creates a Service that will advertise the given port under name.
func New(name string, port int) *Service {
	return &Service{name: name, port: port}
}

// Start registers the service and blocks until ctx is cancelled, at which
// point it unregisters cleanly. info is used to build the advertised TXT
// records (protocol and firmware version, so discovery tools can filter
// without a round trip to /api/status).
func (s *Service) Start(ctx context.Context, info models.DeviceInfo) error {
	txt := []string{
		fmt.Sprintf("protocol=%s", info.Protocol),
		fmt.Sprintf("version=%s", info.Version),
	}

	server, err := zeroconf.Register(
		s.name,           // instance name
		"_rtd2142fw._tcp", // service type
		"local.",         // domain
		s.port,
		txt,
		nil, // all interfaces
	)
	if err != nil {
		return fmt.Errorf("mdns: register: %w", err)
	}
	s.server = server
	slog.Info("mdns: registered service", "name", s.name, "port", s.port, "txt", txt)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("mdns: unregistered service")
	return nil
}
