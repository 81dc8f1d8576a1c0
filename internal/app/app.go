package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"curator/internal/ai"
	"curator/internal/config"
	"curator/internal/curatable"
	"curator/internal/handlers"
	"curator/internal/queue"
	"curator/internal/repositories"
	"curator/internal/routes"
	"curator/internal/services"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "curator/docs"
)

// Core wires repositories and services once; the HTTP server and the CLI
// share it.
type Core struct {
	Cfg *config.Config
	DB  *sql.DB

	Tasks    repositories.TaskRepository
	Projects repositories.ProjectRepository
	Users    repositories.UserRepository
	Curation repositories.CurationRepository

	Registry *curatable.Registry
	Queue    *queue.Queue

	TaskService      services.TaskService
	ReorderService   services.ReorderService
	BreakdownService services.BreakdownService
	CurationService  services.CurationService
	FanOut           *services.FanOutService
}

func NewCore(cfg *config.Config) (*Core, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// === Repos ===
	taskRepo := repositories.NewTaskRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	userRepo := repositories.NewUserRepository(db)
	curationRepo := repositories.NewCurationRepository(db)

	// === AI adapter (optional; heuristics cover its absence) ===
	var adapter ai.Adapter
	if cfg.AI.APIKey != "" {
		gemini, err := ai.NewGeminiAdapter(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
		if err != nil {
			log.Printf("[app][warn] ai adapter disabled: %v", err)
		} else {
			adapter = gemini
		}
	} else {
		log.Printf("[app] no ai api key configured, heuristic fallback only")
	}

	// === Curatable registry ===
	registry := curatable.NewRegistry()
	registry.Register(curatable.KindTask, func(ctx context.Context, id int64) (string, error) {
		t, err := taskRepo.FindByID(ctx, id)
		if err != nil {
			return "", err
		}
		if t == nil {
			return "", fmt.Errorf("task %d not found", id)
		}
		return t.Title, nil
	})

	// === Services ===
	q := queue.New(cfg.Curation.Workers, cfg.Curation.QueueSize)
	breakdownService := services.NewBreakdownService(taskRepo, projectRepo, adapter)
	reorderService := services.NewReorderService(taskRepo, projectRepo)
	taskService := services.NewTaskService(taskRepo, projectRepo, breakdownService)
	curationService := services.NewCurationService(userRepo, projectRepo, taskRepo, curationRepo, adapter, registry)
	fanOut := services.NewFanOutService(userRepo, projectRepo, curationService, q)

	return &Core{
		Cfg: cfg, DB: db,
		Tasks: taskRepo, Projects: projectRepo, Users: userRepo, Curation: curationRepo,
		Registry: registry, Queue: q,
		TaskService: taskService, ReorderService: reorderService,
		BreakdownService: breakdownService, CurationService: curationService,
		FanOut: fanOut,
	}, nil
}

func (c *Core) Close() {
	if err := c.DB.Close(); err != nil {
		log.Printf("[app][err] close database: %v", err)
	}
}

func Run() {
	cfg := config.LoadConfig()

	core, err := NewCore(cfg)
	if err != nil {
		log.Fatal("wiring failed: ", err)
	}
	defer core.Close()

	// background workers for curation units
	go func() {
		if err := core.Queue.Run(context.Background()); err != nil {
			log.Printf("[app][err] queue stopped: %v", err)
		}
	}()

	// === Handlers ===
	taskHandler := handlers.NewTaskHandler(core.TaskService, core.ReorderService, core.BreakdownService)
	curationHandler := handlers.NewCurationHandler(core.CurationService)

	// === Gin ===
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, []byte(cfg.Auth.JWTSecret), taskHandler, curationHandler)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("listening on %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("server failed: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
