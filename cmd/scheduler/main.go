package main

import (
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"

	"gorm.io/gorm"

	"sketch-relay/internal/config"
	"sketch-relay/internal/db"
	"sketch-relay/internal/notify"
	"sketch-relay/internal/relay"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	conn := openDatabase(cfg)
	svc := relay.New(conn, cfg)

	if cfg.NATSURL != "" {
		notifier, err := notify.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			log.Fatalf("nats connection failed: %v", err)
		}
		defer notifier.Close()
		svc.UseNotifier(notifier)
	}

	if conn != nil {
		if err := svc.Restore(); err != nil {
			log.Fatalf("state restore failed: %v", err)
		}
	}
	defer svc.Shutdown()

	addr := ":" + cfg.Port
	log.Printf("sketch-relay scheduler listening on %s", addr)
	if err := http.ListenAndServe(addr, svc.Handler()); err != nil {
		log.Fatal(err)
	}
}

func openDatabase(cfg config.Config) *gorm.DB {
	if os.Getenv("DATABASE_URL") == "" {
		log.Warn("DATABASE_URL not set, running without persistence")
		return nil
	}
	conn, err := db.Open(db.PoolSettings{
		MaxOpenConns:           cfg.DBMaxOpenConns,
		MaxIdleConns:           cfg.DBMaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.DBConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.DBConnMaxIdleTimeSeconds,
	})
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	return conn
}
