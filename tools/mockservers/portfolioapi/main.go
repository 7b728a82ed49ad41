package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/Rohianon/folio/pkg/config"
	"github.com/Rohianon/folio/pkg/logger"
	"github.com/Rohianon/folio/pkg/middleware"
)

func main() {
	cfg, err := config.Load("folio")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var (
		host        = pflag.String("host", cfg.Server.Host, "listen host")
		port        = pflag.Int("port", cfg.Server.Port, "listen port")
		failRate    = pflag.Float64("fail-rate", 0, "fraction of API requests answered with HTTP 500")
		corruptRate = pflag.Float64("corrupt-rate", 0, "fraction of API requests answered with a truncated body")
		latency     = pflag.Duration("latency", 0, "delay added to every API request")
		tick        = pflag.Duration("tick", 0, "advance simulated prices at this interval (0 disables)")
		seed        = pflag.Uint64("seed", 42, "price walk seed")
	)
	pflag.Parse()

	logger.Init(serviceName, cfg.Logging.Level, cfg.Logging.Pretty)

	if envPort := os.Getenv("PORT"); envPort != "" && !pflag.CommandLine.Changed("port") {
		if p, err := strconv.Atoi(envPort); err == nil {
			*port = p
		}
	}

	server := NewServer(*seed)
	app := newApp(server, Options{
		Faults: middleware.FaultConfig{
			FailRate:    *failRate,
			CorruptRate: *corruptRate,
			Latency:     *latency,
		},
	})

	var sched *cron.Cron
	if *tick > 0 {
		sched = cron.New()
		if _, err := sched.AddFunc(fmt.Sprintf("@every %s", *tick), server.Tick); err != nil {
			logger.Fatal().Err(err).Msg("Invalid tick interval")
		}
		sched.Start()
	}

	go func() {
		addr := net.JoinHostPort(*host, strconv.Itoa(*port))
		logger.Info().
			Str("addr", addr).
			Float64("fail_rate", *failRate).
			Float64("corrupt_rate", *corruptRate).
			Dur("latency", *latency).
			Msg("Portfolio API Mock Server listening")
		if err := app.Listen(addr); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Portfolio API Mock Server")
	if sched != nil {
		<-sched.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
}
