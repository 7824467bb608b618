package db

import (
  "fmt"
  "gorm.io/driver/postgres"
  "gorm.io/gorm"
  "github.com/hermes-mma/hermes-backend/internal/types"
  "github.com/hermes-mma/hermes-backend/internal/utils"
  "github.com/hermes-mma/hermes-backend/internal/logger"
)

type PostgresService struct {
  db *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  log.Info("Loading environment variables...")
  dbHost := utils.GetEnv("DB_HOST", "localhost", log)
  dbPort := utils.GetEnv("DB_PORT", "5432", log)
  dbUser := utils.GetEnv("DB_USER", "postgres", log)
  dbPass := utils.GetEnv("DB_PASS", "", log)
  dbName := utils.GetEnv("DB_NAME", "hermes", log)
  log.Debug("Environment variables loaded")

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPass, dbHost, dbPort, dbName)

  log.Info("Connecting to Postgres...")
  db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    log.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
    log.Error("Failed to enable uuid-ossp extension", "error", err)
    return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
  }
  log.Info("uuid-ossp extension enabled")

  return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating postgres tables...")
  err := s.db.AutoMigrate(
    &types.Message{},
    &types.Target{},
    &types.NonLocalizedEvent{},
    &types.NonLocalizedEventSequence{},
    &types.OAuthToken{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for postgres tables", "error", err)
    return err
  }
  s.log.Info("Configuring foreign key relationships for postgres tables...")
  if err := s.db.Exec(`
    ALTER TABLE "nonlocalizedeventsequence"
    DROP CONSTRAINT IF EXISTS "fk_sequence_event_id";
  `).Error; err != nil {
    return fmt.Errorf("Failed to drop fk_sequence_event_id: %w", err)
  }
  if err := s.db.Exec(`
    ALTER TABLE "nonlocalizedeventsequence"
    ADD CONSTRAINT "fk_sequence_event_id"
    FOREIGN KEY ("event_id")
    REFERENCES "nonlocalizedevent"("id")
    ON DELETE CASCADE
  `).Error; err != nil {
    return fmt.Errorf("Failed to add fk_sequence_event_id: %w", err)
  }
  if err := s.db.Exec(`
    ALTER TABLE "nonlocalizedeventsequence"
    DROP CONSTRAINT IF EXISTS "fk_sequence_message_id";
  `).Error; err != nil {
    return fmt.Errorf("Failed to drop fk_sequence_message_id: %w", err)
  }
  if err := s.db.Exec(`
    ALTER TABLE "nonlocalizedeventsequence"
    ADD CONSTRAINT "fk_sequence_message_id"
    FOREIGN KEY ("message_id")
    REFERENCES "message"("id")
    ON DELETE CASCADE
  `).Error; err != nil {
    return fmt.Errorf("Failed to add fk_sequence_message_id: %w", err)
  }
  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
