package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	auth "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/auth"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/deviceauth"
	jwtservice "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/jwt"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/scope"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/controllers"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/middleware"
	config "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Config"
	tlmingestor "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Ingestor"
	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Logger"
	api_models "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models/api"
	implementation "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Repository/Interfaces"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		panic(err)
	}

	log := logger.NewLogger(&cfg.Logging)

	telemetryRepo, userRepo, err := openStore(cfg, log)
	if err != nil {
		log.FatalWithError(err, "failed to open telemetry store")
	}

	// Services
	jwtService := jwtservice.NewService(api_models.Config{
		SecretKey:     cfg.Auth.JWTSecretKey,
		TokenDuration: cfg.Auth.TokenDuration,
	})
	authService := auth.NewAuthService(userRepo, jwtService)
	scopeService := scope.NewService(cfg.Auth.DefaultVisibility)
	deviceAuth := deviceauth.NewService(&cfg.Auth, telemetryRepo)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())

	controllers.NewHealthController().RegisterRoutes(router)
	controllers.NewTelemetryController(telemetryRepo, deviceAuth, scopeService, log, authMiddleware).RegisterRoutes(router)
	controllers.NewAuthController(authService, log).RegisterRoutes(router)
	controllers.NewAdminController(telemetryRepo, userRepo, authService, jwtService, log, cfg.Auth.AdminToken).RegisterRoutes(router)

	// Optional MQTT ingest path
	if cfg.MQTT.Enabled {
		ingestor := tlmingestor.New(cfg.MQTT, telemetryRepo, deviceAuth, log)
		if err := ingestor.Start(context.Background()); err != nil {
			log.FatalWithError(err, "failed to start mqtt ingestor")
		}
		defer ingestor.Stop()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.WithField("port", cfg.Server.Port).Info("server starting")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.FatalWithError(err, "server failed")
	}
}

// openStore constructs the configured telemetry store backend.
func openStore(cfg *config.Config, log *logger.Logger) (interfaces.TelemetryRepository, interfaces.UserRepository, error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, fmt.Errorf("postgres ping: %w", err)
		}

		telemetryRepo := implementation.NewPostgresTelemetryRepository(db)
		userRepo := implementation.NewPostgresUserRepository(db)
		if err := telemetryRepo.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("devices schema: %w", err)
		}
		if err := userRepo.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("users schema: %w", err)
		}
		log.Info("using postgres telemetry store")
		return telemetryRepo, userRepo, nil

	case config.StorageMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}

		db := client.Database(cfg.Mongo.Database)
		log.Info("using mongo telemetry store")
		return implementation.NewMongoTelemetryRepository(db.Collection("devices")),
			implementation.NewMongoUserRepository(db.Collection("users")), nil

	case config.StorageMemory:
		log.Info("using in-memory telemetry store")
		return implementation.NewMemoryTelemetryRepository(), implementation.NewMemoryUserRepository(), nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
}
