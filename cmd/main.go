package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"once/server/internal/config"
	"once/server/internal/engine"
	"once/server/internal/interfaces"
	"once/server/internal/llm"
	"once/server/internal/memory"
	"once/server/internal/storage"
	"once/server/internal/web"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// MySQL is the system of record; without it there is nothing to serve.
	mysqlStore, err := storage.NewMySQLStore(cfg.Database.MySQL)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	defer mysqlStore.Close()
	log.Println("MySQL connected successfully")

	// Redis backs the per-story turn lock. Without it turns are still
	// serialized, but only within this process.
	var locker interfaces.TurnLocker
	redisStore, err := storage.NewRedisStore(cfg.Database.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis, falling back to in-process turn lock: %v", err)
		locker = storage.NewLocalLocker()
	} else {
		defer redisStore.Close()
		log.Println("Redis connected successfully")
		locker = storage.NewRedisLocker(redisStore.GetClient(), "once:")
	}

	client := llm.NewClient(cfg.AI)

	// Both memory backends are optional: a miss degrades recall, not turns.
	var vectors interfaces.VectorStore
	qdrantStore, err := memory.NewQdrantStore(cfg.Database.Qdrant)
	if err != nil {
		log.Printf("Warning: Failed to connect to Qdrant, semantic recall disabled: %v", err)
	} else {
		defer qdrantStore.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := qdrantStore.EnsureCollection(ctx); err != nil {
			log.Printf("Warning: Failed to initialize Qdrant collection: %v", err)
		} else {
			vectors = qdrantStore
			log.Println("Qdrant connected successfully")
		}
		cancel()
	}

	var graph interfaces.GraphStore
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	neo4jStore, err := memory.NewNeo4jStore(ctx, cfg.Database.Neo4j)
	cancel()
	if err != nil {
		log.Printf("Warning: Failed to connect to Neo4j, relational recall disabled: %v", err)
	} else {
		defer neo4jStore.Close(context.Background())
		graph = neo4jStore
		log.Println("Neo4j connected successfully")
	}

	memStore := memory.NewStore(client, vectors, graph, cfg.Memory)

	tasks := engine.NewTaskRunner(cfg.Tasks.Workers, cfg.Tasks.QueueSize, cfg.Tasks.TaskTimeout)
	defer tasks.Close()

	echoes := engine.NewEchoTracker(mysqlStore, client)
	deferred := engine.NewDeferredCast(mysqlStore, client)
	codex := engine.NewCodexCurator(mysqlStore, client)
	forks := engine.NewForkManager(mysqlStore)

	orchestrator := engine.NewOrchestrator(
		mysqlStore, client, client, locker, memStore, tasks,
		echoes, deferred, codex, cfg.Memory.RecentSceneCount,
	)

	handlers := web.NewHandlers(orchestrator, forks, mysqlStore, cfg.Memory.RecentSceneCount)
	router := web.NewRouter(handlers)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
