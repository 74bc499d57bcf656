package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/codewire/internal/logging"
	"github.com/danmuck/codewire/internal/protocol/packet"
	"github.com/danmuck/codewire/internal/rpc"
)

const usage = `usage:
  codewirectl [flags] ping
  codewirectl [flags] call <channel> <method> [json-arg]
  codewirectl [flags] listen <channel> <event> [json-arg]

flags:
  -config path   ctl config file (toml)
  -addr  addr    daemon address (default localhost:9400)
  -network net   daemon network (default tcp)
`

func main() {
	configPath := flag.String("config", "", "path to ctl config file")
	addr := flag.String("addr", "", "daemon address")
	network := flag.String("network", "", "daemon network")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := defaultCtlConfig()
	if *configPath != "" {
		loaded, err := loadCtlConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load ctl config")
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *network != "" {
		cfg.Network = *network
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, args); err != nil {
		fmt.Fprintf(os.Stderr, "codewirectl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg ctlConfig, args []string) error {
	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	switch args[0] {
	case "ping":
		if err := client.Call(ctx, "host", "ping", packet.Undefined()); err != nil {
			return err
		}
		fmt.Println("pong")
		return nil

	case "call":
		if len(args) < 3 {
			return fmt.Errorf("call needs <channel> <method>")
		}
		arg, err := argPacket(args, 3)
		if err != nil {
			return err
		}
		if err := client.Call(ctx, args[1], args[2], arg); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "listen":
		if len(args) < 3 {
			return fmt.Errorf("listen needs <channel> <event>")
		}
		arg, err := argPacket(args, 3)
		if err != nil {
			return err
		}
		sub, err := client.Listen(args[1], args[2], arg)
		if err != nil {
			return err
		}
		defer sub.Dispose()
		for {
			select {
			case <-ctx.Done():
				return nil
			case data, ok := <-sub.C:
				if !ok {
					return rpc.ErrSessionClosed
				}
				fmt.Printf("%s\n", packet.ToJSON(data))
			}
		}

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func connect(ctx context.Context, cfg ctlConfig) (*rpc.Client, error) {
	dialer, err := rpc.NewDialer(cfg.Network, cfg.Addr, cfg.RPC)
	if err != nil {
		return nil, err
	}
	return dialer.Dial(ctx)
}

// argPacket parses the optional trailing argument as JSON, falling back
// to undefined when absent.
func argPacket(args []string, i int) (packet.Packet, error) {
	if len(args) <= i {
		return packet.Undefined(), nil
	}
	raw := []byte(args[i])
	if !json.Valid(raw) {
		return packet.Packet{}, fmt.Errorf("argument is not valid JSON: %s", args[i])
	}
	return packet.Packet{Type: packet.TypeObject, Data: raw}, nil
}
