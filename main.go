package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"storkagent/cache"
	"storkagent/db"
	"storkagent/export"
	qhttp "storkagent/http"
	"storkagent/logging"
	"storkagent/market"
	"storkagent/screen"
	"storkagent/session"
	"storkagent/tools"
)

type Config struct {
	Http struct {
		Port    int `yaml:"port"`
		Timeout int `yaml:"timeout_seconds"`
	} `yaml:"http"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Cache struct {
		Dir        string `yaml:"dir"`
		MemorySize int    `yaml:"memory_size"`
	} `yaml:"cache"`
	Session struct {
		TimeoutMinutes int `yaml:"timeout_minutes"`
		PageSize       int `yaml:"page_size"`
	} `yaml:"session"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
}

func main() {
	// 1. Load config
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(config.Log.Level, config.Log.File)
	defer logger.Sync()

	// 2. Initialize database
	database, err := db.Open(config.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()
	logger.Info("Database initialized", zap.String("path", config.Database.Path))

	// 3. Cache / sessions / export
	store := cache.NewStore(config.Cache.Dir, config.Cache.MemorySize, logger)
	sessions := session.NewManager(time.Duration(config.Session.TimeoutMinutes)*time.Minute, logger)
	exporter, err := export.NewExporter(config.Export.Dir)
	if err != nil {
		logger.Fatal("Failed to initialize exporter", zap.Error(err))
	}

	// 4. Wire the tool layer onto the real upstream fetchers
	screener := screen.NewScreener(logger)
	tl := tools.New(tools.Deps{
		Cache:    store,
		Sessions: sessions,
		DB:       database,
		Exporter: exporter,
		Screen:   screener.Screen,
		Search:   screener.Search,
		Quote:    market.FetchQuote,
		History:  market.FetchHistory,
		Logger:   logger,
		PageSize: config.Session.PageSize,
	})

	// 5. Start HTTP server
	serverConfig := qhttp.DefaultServerConfig()
	if config.Http.Port > 0 {
		serverConfig.Port = config.Http.Port
	}
	if config.Http.Timeout > 0 {
		serverConfig.Timeout = time.Duration(config.Http.Timeout) * time.Second
	}
	server := qhttp.NewServer(serverConfig, tl, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 6. Background session cleanup
	stopCleanup := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-stopCleanup:
				return
			case <-ticker.C:
				if removed := sessions.CleanupExpired(); removed > 0 {
					logger.Debug("expired sessions removed", zap.Int("count", removed))
				}
			}
		}
	}()

	// 7. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")
	close(stopCleanup)

	if err := server.Stop(); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Exiting")
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
