package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"CafePos/app/config"
	"CafePos/app/database"
	"CafePos/app/services"
	"CafePos/app/store"
	"CafePos/app/websocket"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if err := database.Initialize(&cfg.Database); err != nil {
		log.WithError(err).Fatal("database initialization failed")
	}
	defer database.Close()

	st := store.NewGorm(database.GetDB())

	hub := websocket.NewServer(cfg.Server.Port, cfg.Server.AnnounceMDNS)
	notifier := services.NewNotificationService(hub, 64)
	loyalty := services.NewLoyaltyService(st, cfg.Loyalty.PointsPerHundred)
	orders := services.NewOrderService(st, loyalty, notifier)
	drawers := services.NewDrawerService(st, st)
	printer := services.NewPrinterService(cfg.Printer, orders)
	hub.SetRESTHandlers(websocket.NewRESTHandlers(orders, drawers, printer, loyalty, st, notifier))

	if cfg.Printer.Address != "" {
		// Printing stays unavailable until the printer is reachable; orders
		// are unaffected.
		if err := printer.Connect(); err != nil {
			log.WithError(err).Warn("printer unavailable at startup")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- hub.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("notification hub failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub.Stop(ctx)
	notifier.Stop()
	printer.Disconnect()
}
