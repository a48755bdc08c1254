package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/michaelayoade/dotmac-collab/backend/config"
	"github.com/michaelayoade/dotmac-collab/backend/internal/cache"
	"github.com/michaelayoade/dotmac-collab/backend/internal/collab"
	"github.com/michaelayoade/dotmac-collab/backend/internal/httpapi/handlers"
	"github.com/michaelayoade/dotmac-collab/backend/internal/httpapi/middleware"
	"github.com/michaelayoade/dotmac-collab/backend/internal/store"
	"github.com/michaelayoade/dotmac-collab/backend/internal/ws"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "collab").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("init config failed")
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis unreachable")
	}
	defer rdb.Close()

	gormDB, err := store.InitMySQL(cfg.Mysql.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("mysql init failed")
	}

	sqlDB, err := sql.Open("mysql", cfg.Mysql.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("mysql open failed")
	}
	defer sqlDB.Close()

	kafkaCfg := sarama.NewConfig()
	// SyncProducer requires Return.Successes
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("kafka unreachable")
	}
	defer producer.Close()

	kafkaSem := collab.NewSemaphoreControl()
	wsSem := collab.NewSemaphoreControl()

	dispatcher := collab.NewKafkaDispatcher(
		producer,
		cfg.Kafka.Topic,
		kafkaSem,
		log,
		collab.KafkaDispatcherOptions{
			QueueSize:   10_000,
			Workers:     4,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		},
	)

	presenceCache := cache.NewRedisPresence(rdb)
	locker := cache.NewRedisLock(rdb)
	snapshotStore := store.NewSnapshotStore(sqlDB)
	documentStore := store.NewDocumentStore(gormDB)
	commentStore := store.NewCommentStore(gormDB)
	suggestionStore := store.NewSuggestionStore(gormDB)
	conflictStore := store.NewConflictStore(gormDB)

	svc := collab.NewInMemoryService(snapshotStore, dispatcher)
	hub := ws.NewHub(presenceCache, dispatcher)

	opts := collab.SessionOptions{
		Presence:          cfg.Collab.Presence,
		Comments:          cfg.Collab.Comments,
		Suggestions:       cfg.Collab.Suggestions,
		Autosave:          cfg.Collab.Autosave,
		AutosaveInterval:  cfg.Collab.AutosaveInterval,
		LockTTL:           cfg.Collab.LockTTL,
		DefaultResolution: collab.ResolutionStrategy(cfg.Collab.DefaultStrategy),
		InboxSize:         256,
	}

	manager := ws.NewManager(ws.ManagerDeps{
		Hub:         hub,
		Service:     svc,
		Sem:         wsSem,
		Docs:        documentStore,
		Comments:    commentStore,
		Suggestions: suggestionStore,
		Conflicts:   conflictStore,
		Locker:      locker,
		Options:     opts,
		Logger:      log,
	})

	docHandlers := handlers.NewDocumentHandlers(documentStore, locker, cfg.Collab.LockTTL)
	commentHandlers := handlers.NewCommentHandlers(commentStore)
	suggestionHandlers := handlers.NewSuggestionHandlers(suggestionStore)
	conflictHandlers := handlers.NewConflictHandlers(conflictStore)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	group := r.Group("/collab")
	group.Use(middleware.AuthMiddleware(cfg.Auth.Secret))
	group.GET("/ws", manager.WebSocketConnect)

	group.POST("/documents", docHandlers.CreateDocument)
	group.GET("/documents/:docId", docHandlers.GetDocument)
	group.PUT("/documents/:docId", docHandlers.PutDocument)
	group.POST("/documents/:docId/lock", docHandlers.LockDocument)
	group.POST("/documents/:docId/unlock", docHandlers.UnlockDocument)

	group.GET("/documents/:docId/comments", commentHandlers.ListComments)
	group.POST("/documents/:docId/comments", commentHandlers.CreateComment)
	group.PATCH("/documents/:docId/comments/:commentId", commentHandlers.PatchComment)
	group.DELETE("/documents/:docId/comments/:commentId", commentHandlers.DeleteComment)

	group.GET("/documents/:docId/suggestions", suggestionHandlers.ListSuggestions)
	group.POST("/documents/:docId/suggestions", suggestionHandlers.CreateSuggestion)
	group.PATCH("/documents/:docId/suggestions/:suggestionId", suggestionHandlers.PatchSuggestion)

	group.GET("/documents/:docId/conflicts", conflictHandlers.ListOpenConflicts)
	group.POST("/documents/:docId/conflicts/:conflictId/resolve", conflictHandlers.ResolveConflict)

	r.GET("/collab/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	log.Info().Int("port", cfg.Running.Port).Msg("collab server listening")
	if err := r.Run(fmt.Sprintf(":%d", cfg.Running.Port)); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
