// Command rtd2142fw discovers a Realtek RTD2142 DisplayPort MST hub over its
// DP-AUX/I2C sibling, reports its dual-bank firmware state, and can drive a
// firmware update either as a one-shot CLI run or via a small local HTTP
// status/update surface.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dpmst/rtd2142fw/internal/api"
	"github.com/dpmst/rtd2142fw/internal/config"
	"github.com/dpmst/rtd2142fw/internal/controller"
	"github.com/dpmst/rtd2142fw/internal/events"
	"github.com/dpmst/rtd2142fw/internal/identity"
	"github.com/dpmst/rtd2142fw/internal/mdns"
	"github.com/dpmst/rtd2142fw/internal/mst"
)

func main() {
	var (
		mock     = flag.Bool("mock", false, "use an in-memory mock device (no I2C hardware required)")
		auxName  = flag.String("aux-name", "", "DP-AUX quirk name override (e.g. DPDDC-E); defaults to the stored quirk config")
		cfgDir   = flag.String("config-dir", "", "config directory (default: ~/.config/rtd2142fw)")
		addr     = flag.String("addr", "", "HTTP listen address for the status/update surface; empty disables the server")
		firmware = flag.String("firmware", "", "path to a firmware image; if set, runs one update and exits instead of serving")
		debug    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if *cfgDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot determine home directory", "err", err)
			os.Exit(1)
		}
		*cfgDir = filepath.Join(home, ".config", "rtd2142fw")
	}
	if err := os.MkdirAll(*cfgDir, 0755); err != nil {
		slog.Error("cannot create config directory", "path", *cfgDir, "err", err)
		os.Exit(1)
	}

	slog.Info("rtd2142fw starting", "version", identity.GetVersion(*cfgDir), "hostname", identity.GetHostname(), "mock", *mock)

	store := config.NewJSONStore(*cfgDir)
	quirk, err := store.Load()
	if err != nil {
		slog.Error("failed to load quirk config", "err", err)
		os.Exit(1)
	}

	name := *auxName
	if name == "" {
		name = quirk.DpAuxName
	}
	if name == "" && !*mock {
		slog.Error("no DP-AUX quirk name configured; pass --aux-name or set RealtekMstDpAuxName in quirks.json")
		os.Exit(1)
	}
	if *auxName != "" && *auxName != quirk.DpAuxName {
		quirk.DpAuxName = *auxName
		if err := store.Save(quirk); err != nil {
			slog.Warn("failed to persist --aux-name override", "err", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bus := events.NewBus()
	ctrl := controller.New(name, store, bus, *mock)

	if err := ctrl.Connect(); err != nil {
		slog.Error("failed to connect to hub", "aux_name", name, "mock", *mock, "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			slog.Warn("error closing device", "err", err)
		}
	}()

	info, _ := ctrl.Status()
	slog.Info("connected to hub", "name", info.Name, "version", info.Version, "flags", info.FlagsStr, "instance_ids", ctrl.InstanceIDs(), "physical_id", ctrl.PhysicalID())

	if *firmware != "" {
		runOneUpdate(ctx, ctrl, *firmware)
		return
	}

	if *addr == "" {
		slog.Info("no --addr given and no --firmware given; nothing to do")
		return
	}

	serve(ctx, *addr, ctrl, bus, store)
}

func runOneUpdate(ctx context.Context, ctrl *controller.Controller, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("failed to read firmware image", "path", path, "err", err)
		os.Exit(1)
	}
	if len(data) != mst.FirmwareSize {
		slog.Error("firmware image has the wrong size", "path", path, "size", len(data), "want", mst.FirmwareSize)
		os.Exit(1)
	}

	slog.Info("starting update", "path", path, "size", len(data))
	if err := ctrl.RunUpdate(ctx, data); err != nil {
		slog.Error("update failed", "err", err)
		os.Exit(1)
	}

	info, _ := ctrl.Status()
	slog.Info("update complete", "version", info.Version, "flags", info.FlagsStr)
}

func serve(ctx context.Context, addr string, ctrl *controller.Controller, bus *events.Bus, store config.Store) {
	router := api.NewRouter(ctrl, bus)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams do not have a fixed response size
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("rtd2142fw listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	if _, port, err := net.SplitHostPort(addr); err == nil {
		if portNum, err := strconv.Atoi(port); err == nil {
			go func() {
				info, _ := ctrl.Status()
				svc := mdns.New(identity.GetHostname(), portNum)
				if err := svc.Start(ctx, info); err != nil {
					slog.Warn("mdns: failed to start", "err", err)
				}
			}()
		}
	}

	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()

	if err := store.Flush(); err != nil {
		slog.Warn("failed to flush config", "err", err)
	}
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	slog.Info("shutdown complete")
}
