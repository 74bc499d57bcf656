package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/codewire/internal/admin"
	"github.com/danmuck/codewire/internal/auth"
	"github.com/danmuck/codewire/internal/config"
	"github.com/danmuck/codewire/internal/logging"
	"github.com/danmuck/codewire/internal/observability"
	"github.com/danmuck/codewire/internal/protocol/packet"
	"github.com/danmuck/codewire/internal/rpc"
)

func main() {
	configPath := flag.String("config", "", "path to codewired.toml")
	initConfig := flag.Bool("init", false, "write a template config to -config and exit")
	flag.Parse()

	logging.ConfigureRuntime()

	if *initConfig {
		if *configPath == "" {
			fmt.Fprintln(os.Stderr, "codewired: -init requires -config")
			os.Exit(2)
		}
		if err := config.WriteTemplate(*configPath, false); err != nil {
			log.Fatal().Err(err).Msg("write template config")
		}
		log.Info().Str("path", *configPath).Msg("template config written")
		return
	}

	cfg := config.DefaultDaemonConfig()
	if *configPath != "" {
		loaded, err := config.LoadDaemonConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load daemon config")
		}
		cfg = loaded
		log.Info().Str("path", *configPath).Msg("loaded daemon config")
	}
	logging.ApplyLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("codewired stopped")
	}
}

func run(ctx context.Context, cfg config.DaemonConfig) error {
	rpcCfg := rpc.DefaultConfig()
	rpcCfg.Limits = cfg.Wire.Limits()
	if cfg.Wire.EventBuffer > 0 {
		rpcCfg.EventBuffer = cfg.Wire.EventBuffer
	}

	srv := rpc.NewServer(rpcCfg)
	if err := srv.Register("host", hostChannel()); err != nil {
		return err
	}

	sessions := admin.NewRegistry()
	var validator auth.Validator
	if cfg.AdminToken != "" {
		validator = auth.StaticToken{Token: cfg.AdminToken}
	}
	adminSrv := admin.New(cfg.AdminAddr, sessions, cfg.CorsOrigins, validator)
	go func() {
		if err := adminSrv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("admin server stopped")
		}
	}()

	ln, err := net.Listen(cfg.Network, cfg.Addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	log.Info().Str("network", cfg.Network).Str("addr", cfg.Addr).Str("admin", cfg.AdminAddr).Msg("codewired listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go serveConn(ctx, srv, sessions, conn)
	}
}

func serveConn(ctx context.Context, srv *rpc.Server, sessions *admin.Registry, conn net.Conn) {
	id := sessions.Add(conn.RemoteAddr().String())
	defer sessions.Remove(id)
	log.Info().Str("session", id).Str("remote", conn.RemoteAddr().String()).Msg("session opened")
	if err := srv.Serve(ctx, conn); err != nil {
		log.Warn().Err(err).Str("session", id).Msg("session failed")
		return
	}
	log.Info().Str("session", id).Msg("session closed")
}

// hostChannel is the built-in channel every daemon exposes. Promise
// results carry no payload, so anything with output flows back through
// events.
func hostChannel() *rpc.Channel {
	logger := observability.Component("host")
	started := time.Now()
	return rpc.NewChannel().
		Promise("ping", func(ctx context.Context, arg packet.Packet) error {
			return nil
		}).
		Promise("log", func(ctx context.Context, arg packet.Packet) error {
			logger.Info().RawJSON("arg", packet.ToJSON(arg)).Msg("log request")
			return nil
		}).
		Promise("stat", func(ctx context.Context, arg packet.Packet) error {
			logger.Info().
				Int("goroutines", runtime.NumGoroutine()).
				Str("uptime", time.Since(started).String()).
				Msg("stat request")
			return nil
		}).
		Event("echo", func(ctx context.Context, arg packet.Packet, emit func(packet.Packet)) {
			emit(arg)
			<-ctx.Done()
		}).
		Event("clock", func(ctx context.Context, arg packet.Packet, emit func(packet.Packet)) {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-ticker.C:
					emit(packet.NewString(t.UTC().Format(time.RFC3339)))
				}
			}
		})
}
