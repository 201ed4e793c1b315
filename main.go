package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pion/mdns/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"homehub/internal/channels/zigbee2mqtt"
	"homehub/internal/conditions"
	"homehub/internal/conducts"
	"homehub/internal/config"
	"homehub/internal/db"
	"homehub/internal/logging"
	"homehub/internal/mqtt"
	"homehub/internal/processor"
	"homehub/internal/scheduler"
	"homehub/internal/state"
	"homehub/internal/telemetry"
	"homehub/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DBURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	registry := db.NewDeviceRegistry(database)
	processes := db.NewProcessRepository(database)
	history := db.NewHistoryStore(database)

	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	// Telemetry: the engine enqueues, the worker delivers.
	sink := telemetry.NewQueue(cfg.RedisAddr, logger.With().Str("component", "telemetry").Logger())
	defer sink.Close()
	worker := telemetry.NewWorker(cfg.RedisAddr, redisClient, history,
		logger.With().Str("component", "telemetry-worker").Logger())
	go func() {
		if err := worker.Run(); err != nil {
			logger.Fatal().Err(err).Msg("telemetry worker failed")
		}
	}()

	// Core engine.
	states := state.NewManager(registry, sink, logger.With().Str("component", "state").Logger())
	conductManager := conducts.NewManager(logger.With().Str("component", "conducts").Logger())
	evaluator := conditions.NewEvaluator(conditions.NewStateValueProvider(states))
	proc := processor.New(states, processes, evaluator, conductManager,
		logger.With().Str("component", "processor").Logger())
	if err := proc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start processor")
	}

	// Protocol adapters.
	broker, err := mqtt.Connect(cfg.MQTTBroker, cfg.MQTTClientID,
		logger.With().Str("component", "mqtt").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MQTT broker")
	}
	z2m := zigbee2mqtt.New(broker, states, registry,
		logger.With().Str("component", "zigbee2mqtt").Logger())
	if err := z2m.Start(ctx, conductManager); err != nil {
		logger.Fatal().Err(err).Msg("failed to start zigbee2mqtt adapter")
	}

	// Periodic refresh of gettable contacts.
	sched := scheduler.New(logger.With().Str("component", "scheduler").Logger())
	if err := sched.AddJob(cfg.PollSchedule, func() { z2m.Poll(ctx) }); err != nil {
		logger.Fatal().Err(err).Msg("invalid poll schedule")
	}
	sched.Start()

	server := web.NewServer(states, registry, processes, conductManager,
		cfg.JWTSecret, cfg.AdminPasswordHash,
		logger.With().Str("component", "web").Logger())
	go func() {
		if err := server.Run(cfg.HTTPAddr); err != nil {
			logger.Fatal().Err(err).Msg("web server failed")
		}
	}()

	go advertiseMDNS(cfg.MDNSLocalName, logger)

	<-ctx.Done()

	z2m.Stop()
	broker.Disconnect()
	sched.Stop()
	proc.Stop()
	worker.Shutdown()
	logger.Info().Msg("shutdown complete")
}

// advertiseMDNS answers mDNS queries for the hub's local name so apps
// on the LAN can find it without configuration.
func advertiseMDNS(localName string, logger zerolog.Logger) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		logger.Warn().Err(err).Msg("mDNS disabled, cannot resolve IPv4 address")
		return
	}
	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		logger.Warn().Err(err).Msg("mDNS disabled, cannot resolve IPv6 address")
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		logger.Warn().Err(err).Msg("mDNS disabled, cannot listen on IPv4")
		return
	}
	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		logger.Warn().Err(err).Msg("mDNS disabled, cannot listen on IPv6")
		return
	}

	_, err = mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to start mDNS server")
		return
	}
	logger.Info().Str("name", localName).Msg("mDNS advertisement started")
}
