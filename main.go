package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/mdns/v2"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"techhome/internal/automation"
	"techhome/internal/bridge"
	"techhome/internal/config"
	"techhome/internal/db"
	"techhome/internal/devicelog"
	"techhome/internal/hub"
	"techhome/internal/logging"
	"techhome/internal/redis"
	"techhome/internal/scheduler"
	"techhome/internal/taskqueue"
	"techhome/internal/web"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.JSON)
	logger := logging.Component("main")

	ctx := context.Background()

	dbConn, err := db.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer dbConn.Close()

	redisClient := redis.NewRedisClient(cfg.Redis.Addr)

	hubClient := hub.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token,
		time.Duration(cfg.HomeAssistant.TimeoutSecs)*time.Second)

	recorder := devicelog.NewRecorder(dbConn)
	executor := automation.NewExecutor(dbConn, hubClient, recorder)

	tqClient := taskqueue.NewClient(cfg.Redis.Addr)
	defer tqClient.Close()

	worker := taskqueue.NewWorker(cfg.Redis.Addr, executor, dbConn)
	go func() {
		if err := worker.Run(); err != nil {
			logger.Fatal().Err(err).Msg("task worker stopped")
		}
	}()

	sched := scheduler.New(dbConn, tqClient)
	sched.Start()
	if err := sched.Resync(ctx); err != nil {
		logger.Error().Err(err).Msg("initial automation sync failed")
	}

	webServer := web.NewWebServer(dbConn.Pool(), redisClient, cfg.JWT.Secret, hubClient, tqClient, sched)
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	go func() {
		if err := webServer.Start(addr); err != nil {
			logger.Fatal().Err(err).Msg("web server stopped")
		}
	}()

	if cfg.MDNS.Enabled {
		go startMDNSServer(cfg.MDNS.LocalName)
	}

	if cfg.RemoteAccess.Enabled {
		go bridge.Start(bridge.Config{
			PublicWS:   cfg.RemoteAccess.PublicWS,
			LocalURL:   "http://127.0.0.1" + addr,
			AgentID:    cfg.RemoteAccess.AgentID,
			RetryDelay: time.Duration(cfg.RemoteAccess.RetryDelaySecs) * time.Second,
		})
	} else {
		logger.Info().Msg("remote access bridge disabled")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	sched.Stop()
	worker.Stop()
	logger.Info().Msg("shutdown complete")
}

func startMDNSServer(localName string) {
	logger := logging.Component("mdns")

	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		logger.Error().Err(err).Msg("udp4 address resolve failed")
		return
	}
	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		logger.Error().Err(err).Msg("udp6 address resolve failed")
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		logger.Error().Err(err).Msg("udp4 listen failed")
		return
	}
	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		logger.Error().Err(err).Msg("udp6 listen failed")
		return
	}

	_, err = mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		logger.Error().Err(err).Msg("mdns server start failed")
		return
	}
	logger.Info().Str("name", localName).Msg("advertising on local network")
}
