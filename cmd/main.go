package main

import (
  "context"
  "fmt"
  "os"
  "strconv"
  "strings"

  "github.com/hermes-mma/hermes-backend/internal/cache"
  "github.com/hermes-mma/hermes-backend/internal/clients/gcn"
  "github.com/hermes-mma/hermes-backend/internal/clients/hopauth"
  "github.com/hermes-mma/hermes-backend/internal/clients/tns"
  "github.com/hermes-mma/hermes-backend/internal/db"
  "github.com/hermes-mma/hermes-backend/internal/handlers"
  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/middleware"
  "github.com/hermes-mma/hermes-backend/internal/observability"
  "github.com/hermes-mma/hermes-backend/internal/repos"
  "github.com/hermes-mma/hermes-backend/internal/server"
  "github.com/hermes-mma/hermes-backend/internal/services"
  "github.com/hermes-mma/hermes-backend/internal/stream"
  "github.com/hermes-mma/hermes-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "production"
    if debug, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && debug {
      logMode = "development"
    }
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  secretKey := utils.GetEnv("SECRET_KEY", "defaultsecret", log)
  frontEndBaseURL := utils.GetEnv("HERMES_FRONT_END_BASE_URL", "http://localhost:8080/", log)
  hopAuthBaseURL := utils.GetEnv("HOP_AUTH_BASE_URL", "https://admin.dev.hop.scimma.org/hopauth", log)
  hopUsername := utils.GetEnv("HOP_USERNAME", "", log)
  hopPassword := utils.GetEnv("HOP_PASSWORD", "", log)
  hopBroker := utils.GetEnv("HOPSKOTCH_BROKER", stream.DefaultBroker, log)
  tnsBaseURL := utils.GetEnv("TNS_BASE_URL", "https://sandbox.wis-tns.org", log)
  gcnEmail := utils.GetEnv("GCN_EMAIL", "", log)
  gcnMetadataURL := utils.GetEnv("GCN_SERVER_METADATA_URL", "https://auth.gcn.nasa.gov/.well-known/openid-configuration", log)
  gcnClientID := utils.GetEnv("GCN_CLIENT_ID", "", log)
  gcnClientSecret := utils.GetEnv("GCN_CLIENT_SECRET", "", log)

  // Tracing
  otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
    ServiceName: "hermes-backend",
    Environment: logMode,
  })
  defer otelShutdown(context.Background())

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Cache
  store, err := cache.New(log)
  if err != nil {
    log.Error("Cache init failed", "error", err)
    os.Exit(1)
  }
  defer store.Close()

  // Repos
  log.Info("Setting up Repos from main...")
  messageRepo := repos.NewMessageRepo(thePG, log)
  targetRepo := repos.NewTargetRepo(thePG, log)
  eventRepo := repos.NewNonLocalizedEventRepo(thePG, log)
  sequenceRepo := repos.NewNonLocalizedEventSequenceRepo(thePG, log)
  oauthTokenRepo := repos.NewOAuthTokenRepo(thePG, log)

  // Clients
  log.Info("Setting up clients from main...")
  hopAuthClient, err := hopauth.New(log, hopauth.Config{
    BaseURL:         hopAuthBaseURL,
    ServiceUsername: hopUsername,
    ServicePassword: hopPassword,
  })
  if err != nil {
    log.Error("Could not init hop-auth client", "error", err)
    os.Exit(1)
  }
  tnsClient, err := tns.New(log, tns.Config{BaseURL: tnsBaseURL})
  if err != nil {
    log.Error("Could not init TNS client", "error", err)
    os.Exit(1)
  }
  var gcnClient gcn.Client
  if gcnClientID != "" {
    gcnClient, err = gcn.New(log, gcn.Config{
      ServerMetadataURL: gcnMetadataURL,
      ClientID:          gcnClientID,
      ClientSecret:      gcnClientSecret,
    })
    if err != nil {
      log.Warn("Could not init GCN client", "error", err)
    }
  }

  // Services
  log.Info("Setting up Services from main...")
  messageService := services.NewMessageService(thePG, log, messageRepo)
  targetService := services.NewTargetService(thePG, log, targetRepo)
  eventService := services.NewNonLocalizedEventService(thePG, log, eventRepo, sequenceRepo)
  topicService := services.NewTopicService(log, hopAuthClient, store)
  tnsService := services.NewTNSService(log, tnsClient, store)
  authService := services.NewAuthService(log, hopAuthClient, store, secretKey)
  oauthService := services.NewOAuthTokenService(thePG, log, oauthTokenRepo, gcnClient)
  emailService := services.NewEmailService(log, services.EmailConfig{
    Host:     utils.GetEnv("SMTP_HOST", "", log),
    Port:     utils.GetEnvAsInt("SMTP_PORT", 587, log),
    Username: utils.GetEnv("SMTP_USERNAME", "", log),
    Password: utils.GetEnv("SMTP_PASSWORD", "", log),
    From:     utils.GetEnv("SMTP_FROM", "", log),
  })
  submitService := services.NewSubmitService(
    log,
    services.DefaultPublisherFactory(log, hopBroker, hopUsername, hopPassword),
    tnsService,
    emailService,
    gcnEmail,
  )

  // Handlers
  log.Info("Setting up handlers from main...")
  authHandler := handlers.NewAuthHandler(log, authService, frontEndBaseURL)
  messageHandler := handlers.NewMessageHandler(log, messageService)
  targetHandler := handlers.NewTargetHandler(log, targetService)
  eventHandler := handlers.NewNonLocalizedEventHandler(log, eventService)
  topicHandler := handlers.NewTopicHandler(log, topicService)
  tnsHandler := handlers.NewTNSHandler(log, tnsService)
  submitHandler := handlers.NewSubmitHandler(log, submitService)
  profileHandler := handlers.NewProfileHandler(log, oauthService)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  allowedOrigins := strings.Split(utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log), ",")
  if len(allowedOrigins) == 1 && allowedOrigins[0] == "" {
    allowedOrigins = nil
  }
  router := server.NewRouter(server.RouterConfig{
    AuthMiddleware: authMiddleware,
    AuthHandler:    authHandler,
    MessageHandler: messageHandler,
    TargetHandler:  targetHandler,
    EventHandler:   eventHandler,
    TopicHandler:   topicHandler,
    TNSHandler:     tnsHandler,
    SubmitHandler:  submitHandler,
    ProfileHandler: profileHandler,
    AllowedOrigins: allowedOrigins,
  })

  port := utils.GetEnv("PORT", "8000", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
