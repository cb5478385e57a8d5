// Package main is the entry point for the Huellitas backend.
// It initializes all systems and starts the API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HuellitasApp/HuellitasGo/internal/pets"
	"github.com/HuellitasApp/HuellitasGo/internal/premium"
	"github.com/HuellitasApp/HuellitasGo/pkg/config"
	"github.com/HuellitasApp/HuellitasGo/pkg/database"
	"github.com/HuellitasApp/HuellitasGo/pkg/errors"
	"github.com/HuellitasApp/HuellitasGo/pkg/logger"
	"github.com/HuellitasApp/HuellitasGo/pkg/mqtt"
	"github.com/HuellitasApp/HuellitasGo/pkg/notify"
	"github.com/HuellitasApp/HuellitasGo/pkg/session"
	"github.com/HuellitasApp/HuellitasGo/pkg/storage"
	"github.com/HuellitasApp/HuellitasGo/pkg/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.Init(cfg.ErrorWebhook, cfg.LogsWebhook)
	defer log.Close()

	logger.System("Iniciando Huellitas Go...", "Main")
	logger.Info(fmt.Sprintf("Directorio de trabajo: %s", getCurrentDir()), "Main")

	// Initialize error handler
	errors.Init(cfg.ErrorWebhook, func() {
		if db := database.Get(); db != nil {
			_ = db.Disconnect()
		}
	})

	// Initialize database
	db, err := database.Init(cfg.MongoDBURL, cfg.DBName)
	if err != nil {
		logger.Error(fmt.Sprintf("Error connecting to database: %v", err), "Main")
		// Continue without database- it will attempt to reconnect
	}
	defer func() {
		if db != nil {
			_ = db.Disconnect()
		}
	}()

	// Initialize global DataManagers
	if db != nil {
		database.InitGlobalDataManagers(db)
	}

	// Initialize blob storage
	blobs, err := storage.New(context.Background(), cfg)
	if err != nil {
		logger.Warn(fmt.Sprintf("Almacenamiento de archivos deshabilitado: %v", err), "Main")
	}

	// Initialize MQTT
	mqttClientID := "huellitas"
	if !cfg.IsProd() {
		mqttClientID = "huellitas_canary"
	}

	mqttClient := mqtt.Init(
		cfg.MQTTHost,
		cfg.MQTTPort,
		cfg.MQTTUser,
		cfg.MQTTPassword,
		mqttClientID,
	)
	defer mqttClient.Destroy()

	// Notifications: websocket hub for UI clients plus MQTT fanout
	hub := notify.NewHub()
	notifier := notify.Multi{
		hub,
		notify.NewMQTTNotifier(mqttClient, "notices"),
	}

	// Session and application services
	sess := session.New()
	users := database.NewUserStore(db)
	premiumStore := database.NewPremiumStore(db)
	petStore := database.NewPetStore(db)

	engine := premium.NewEngine(premiumStore, sess, notifier)

	var blobStore pets.BlobStore
	if blobs != nil {
		blobStore = blobs
	}
	registry := pets.NewRegistry(petStore, blobStore, sess, notifier)

	// Load the discount catalog at startup; it does not depend on a session
	if err := engine.LoadPartners(context.Background()); err != nil {
		logger.Warn(fmt.Sprintf("Catálogo no disponible al iniciar: %v", err), "Main")
	}

	// Initialize web server
	webServer := web.Init(cfg.LogsWebServerHook)
	web.SetupAPIRoutes(webServer, &web.API{
		Session:  sess,
		Users:    users,
		Engine:   engine,
		Registry: registry,
		Hub:      hub,
	})
	webServer.StartAsync(cfg.Port)

	// External channels can query status and receive vaccine reminders
	mqttClient.On("status", func(payload map[string]interface{}) (interface{}, error) {
		dbStatus, dbOnline := database.Get().GetStatus()
		return map[string]interface{}{
			"database": dbStatus,
			"isOnline": dbOnline,
		}, nil
	})
	go publishVaccineReminders(mqttClient, registry)

	logger.System("Huellitas Go listo", "Main")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.System("Apagando Huellitas Go...", "Main")
}

// publishVaccineReminders periodically publishes the vaccines due within
// the reminder window so external channels can notify the owner
func publishVaccineReminders(mc *mqtt.MqttCommunicator, registry *pets.Registry) {
	defer errors.RecoverMiddleware()()

	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		upcoming := registry.UpcomingVaccines()
		if len(upcoming) == 0 {
			continue
		}
		if err := mc.Publish("reminders/vaccines", upcoming); err != nil {
			logger.Warn(fmt.Sprintf("No se pudieron publicar recordatorios: %v", err), "Main")
		}
	}
}

// getCurrentDir returns the current working directory
func getCurrentDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return dir
}
