// README: Entry point; loads config, wires services, starts the API server and realtime bridge.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"leafline/internal/config"
	httptransport "leafline/internal/http"
	"leafline/internal/infra"
	"leafline/internal/logger"
	"leafline/internal/maps"
	"leafline/internal/modules/catalog"
	"leafline/internal/modules/dispatch"
	"leafline/internal/modules/driver"
	"leafline/internal/modules/earnings"
	"leafline/internal/modules/order"
	"leafline/internal/notify"
	"leafline/internal/orchestrator"
	"leafline/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Initialize(cfg.Log.Level, cfg.Log.Env); err != nil {
		panic(err)
	}
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		logger.Log.Fatal("LEAFLINE_FIREBASE_PROJECT_ID is required")
	}
	fb, err := infra.NewFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Log.Fatal("firebase init", zap.Error(err))
	}

	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Log.Fatal("db init", zap.Error(err))
	}
	defer db.Close()

	rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.Log.Fatal("redis init", zap.Error(err))
	}
	defer rdb.Close()

	var distance maps.DistanceProvider = maps.HaversineProvider{}
	if cfg.Maps.APIKey != "" {
		route, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			logger.Log.Fatal("maps init", zap.Error(err))
		}
		distance = route
	}

	catalogStore := catalog.NewStore(db)
	orderSvc := order.NewService(order.NewStore(db), catalogStore, cfg.Pricing)
	driverSvc := driver.NewService(driver.NewStore(db, rdb))
	dispatchSvc := dispatch.NewService(orderSvc, driverSvc, cfg.Dispatch)
	earningsSvc := earnings.NewService(earnings.NewStore(db), cfg.Pay)

	registry := realtime.NewRegistry()
	registry.OnDriverDisconnect(driverSvc.ForceOffline)
	broadcaster := realtime.NewBroadcaster(registry, rdb)
	go func() {
		if err := broadcaster.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.Error("realtime bridge stopped", zap.Error(err))
		}
	}()

	fcm := notify.NewFCM(fb.Messaging, db)

	oc := orchestrator.New(orderSvc, dispatchSvc, driverSvc, earningsSvc,
		broadcaster, registry, fcm, distance, cfg)

	router := httptransport.NewRouter(httptransport.ServerDeps{
		Orchestrator: oc,
		Matcher:      dispatchSvc,
		Earnings:     earningsSvc,
		Tokens:       fcm,
		Registry:     registry,
		Verifier:     fb,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("shutdown", zap.Error(err))
		}
	}()

	logger.Log.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatal("server", zap.Error(err))
	}
}
