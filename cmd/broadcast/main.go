package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/outofforest/broadcast"
	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.DefaultConfig)
	ctx = logger.WithLogger(ctx, log)

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Broadcast node failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) (retErr error) {
	config, err := parseConfig(args)
	if err != nil {
		return err
	}

	node, err := broadcast.NewNode(config, broadcast.LogHandler{})
	if err != nil {
		return err
	}
	defer func() {
		if err := node.Close(); err != nil {
			if retErr == nil {
				retErr = err
				return
			}
			logger.Get(ctx).Error("Closing node failed", zap.Error(err))
		}
	}()

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("node", parallel.Fail, node.Run)
		spawn("stdin", parallel.Continue, func(ctx context.Context) error {
			return broadcastLines(ctx, node)
		})
		return nil
	})
}

func parseConfig(args []string) (broadcast.Config, error) {
	flags := pflag.NewFlagSet("broadcast", pflag.ContinueOnError)
	configFile := flags.String("config", "", "Path to the TOML config file")
	port := flags.Int("port", 0, "UDP port to bind and broadcast to")
	address := flags.String("broadcast-address", "", "Address frames are sent to")
	instanceID := flags.String("instance-id", "", "Identifier carried by heartbeats")
	heartbeat := flags.Duration("heartbeat-interval", 0, "Interval between heartbeats, 0 disables them")
	loopback := flags.Bool("loopback", false, "Accept datagrams sent from local addresses")

	if err := flags.Parse(args); err != nil {
		return broadcast.Config{}, errors.WithStack(err)
	}

	config := broadcast.DefaultConfig()
	if *configFile != "" {
		var err error
		config, err = broadcast.LoadConfig(*configFile)
		if err != nil {
			return broadcast.Config{}, err
		}
	}

	if flags.Changed("port") {
		config.Port = *port
	}
	if flags.Changed("broadcast-address") {
		config.BroadcastAddress = *address
	}
	if flags.Changed("instance-id") {
		config.InstanceID = *instanceID
	}
	if flags.Changed("heartbeat-interval") {
		config.HeartbeatInterval = *heartbeat
	}
	if flags.Changed("loopback") {
		config.Loopback = *loopback
	}

	return config, config.Validate()
}

// broadcastLines sends every line read from stdin as text message.
// Reading is not interruptible so the scanner runs in its own goroutine.
func broadcastLines(ctx context.Context, node *broadcast.Node) error {
	log := logger.Get(ctx)

	linesCh := make(chan string)
	go func() {
		defer close(linesCh)

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			case linesCh <- scanner.Text():
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error("Reading stdin failed", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case line, ok := <-linesCh:
			if !ok {
				return nil
			}
			if err := node.SendText(line); err != nil {
				log.Error("Broadcasting line failed", zap.Error(err))
			}
		}
	}
}
