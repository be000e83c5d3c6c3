package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"example.com/jsonblog/cmd/server"
	"example.com/jsonblog/cmd/worker"
	"example.com/jsonblog/internal/blog"
	appkafka "example.com/jsonblog/internal/broker"
	"example.com/jsonblog/internal/flash"
	config "example.com/jsonblog/internal/init"
	"example.com/jsonblog/internal/logger"
	"example.com/jsonblog/internal/store"
)

func main() {
	// Initialize application configuration
	cfg := config.Init()
	mode := cfg.Mode

	logFile := logger.Setup(logger.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer logFile.Close()

	// Open the post store selected by STORE_BACKEND
	st, err := store.New(cfg)
	if err != nil {
		log.Fatalf("Store init failed: %v", err)
	}
	defer st.Close()

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run application depending on selected mode
	switch mode {
	case "server":
		var events appkafka.KafkaWriter = appkafka.NopWriter{}
		if cfg.KafkaEnabled {
			kafkaWriter, err := appkafka.NewKafkaWriter(kafkaCfg)
			if err != nil {
				log.Fatalf("Kafka writer init failed: %v", err)
			}
			defer kafkaWriter.Close()
			events = kafkaWriter
		}

		s, err := server.New(blog.New(st, events), flash.NewJar(cfg.FlashSecret))
		if err != nil {
			log.Fatalf("Server init failed: %v", err)
		}
		server.Run(ctx, s, server.Options{
			Addr:        cfg.ServerAddr,
			TLSCertFile: cfg.TLSCertFile,
			TLSKeyFile:  cfg.TLSKeyFile,
		})
	case "worker":
		// Replay events from Kafka into the configured store
		kafkaReader := appkafka.NewKafkaReader(kafkaCfg)
		w := worker.New(blog.New(st, nil), kafkaReader, cfg.WorkerCount, cfg.WorkerQueueSize)
		w.Run(ctx)
		if err := w.Close(); err != nil {
			log.Printf("Worker close failed: %v", err)
		}
	default:
		log.Fatalf("unknown mode: %s", mode)
	}

	log.Println("Shutdown completed")
}
