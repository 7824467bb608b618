package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

  "github.com/hermes-mma/hermes-backend/internal/handlers"
  "github.com/hermes-mma/hermes-backend/internal/middleware"
)

type RouterConfig struct {
  AuthMiddleware    *middleware.AuthMiddleware
  AuthHandler       *handlers.AuthHandler
  MessageHandler    *handlers.MessageHandler
  TargetHandler     *handlers.TargetHandler
  EventHandler      *handlers.NonLocalizedEventHandler
  TopicHandler      *handlers.TopicHandler
  TNSHandler        *handlers.TNSHandler
  SubmitHandler     *handlers.SubmitHandler
  ProfileHandler    *handlers.ProfileHandler
  AllowedOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()
  router.Use(otelgin.Middleware("hermes-backend"))

  // Cors
  origins := cfg.AllowedOrigins
  if len(origins) == 0 {
    origins = []string{"http://localhost:8080", "http://localhost:3000"}
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     origins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-CSRFToken", "SCIMMA-API-Auth-Username", "SCIMMA-API-Auth-Password"},
    AllowCredentials: true,
  }))

  router.Use(cfg.AuthMiddleware.ResolveSession())

// ===============
// || Public    ||
// ===============
  router.GET("/healthz", handlers.HealthCheck)
  router.GET("/get-csrf-token/", cfg.AuthHandler.GetCSRFToken)
  router.GET("/login-redirect/", cfg.AuthHandler.LoginRedirect)
  router.GET("/logout-redirect/", cfg.AuthHandler.LogoutRedirect)

  api := router.Group("/api/v0")
  {
    api.GET("/messages/", cfg.MessageHandler.List)
    api.GET("/messages/:id/", cfg.MessageHandler.Get)
    api.GET("/messages/:id/plaintext/", cfg.MessageHandler.GetPlaintext)
    api.GET("/targets/", cfg.TargetHandler.List)
    api.GET("/targets/:id/", cfg.TargetHandler.Get)
    api.GET("/nonlocalizedevents/", cfg.EventHandler.List)
    api.GET("/nonlocalizedevents/:event_id/", cfg.EventHandler.Get)
    api.GET("/nonlocalizedevents/:event_id/sequences/", cfg.EventHandler.Sequences)
    api.GET("/nonlocalizedeventsequence/", cfg.EventHandler.ListSequences)
    api.GET("/topics/", cfg.TopicHandler.List)
    api.GET("/tns_options/", cfg.TNSHandler.Options)

    api.GET("/submit_message/", cfg.SubmitHandler.DescribeMessage)
    api.GET("/submit_candidates/", cfg.SubmitHandler.DescribeCandidates)
    api.GET("/submit_photometry/", cfg.SubmitHandler.DescribePhotometry)
  }

// ===============
// || Protected ||
// ===============
  submit := router.Group("/api/v0")
  submit.Use(cfg.AuthMiddleware.RequireCSRF())
  {
    submit.POST("/submit_message/", cfg.SubmitHandler.SubmitMessage)
    submit.POST("/submit_candidates/", cfg.SubmitHandler.SubmitCandidates)
    submit.POST("/submit_photometry/", cfg.SubmitHandler.SubmitPhotometry)
  }

  profile := router.Group("/api/v0/profile")
  profile.Use(cfg.AuthMiddleware.RequireSession())
  {
    profile.GET("/", cfg.ProfileHandler.Get)
    profile.POST("/oauth_tokens/", cfg.ProfileHandler.StoreOAuthToken)
    profile.DELETE("/oauth_tokens/:app/", cfg.ProfileHandler.DeleteOAuthToken)
  }

  return router
}
