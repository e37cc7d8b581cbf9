package database

import (
	"context"
	"fmt"
	"time"

	"video_uniquifier_bot/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresConfig holds the connection settings of the record database.
type PostgresConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// InitDB connects to postgres and migrates the record table.
func InitDB(cfg PostgresConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.Record{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	log.Info().Str("host", cfg.Host).Str("db", cfg.Name).Msg("database ready")
	return db, nil
}

// InitRedis parses url, connects and pings the server.
func InitRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("redis ready")
	return client, nil
}
