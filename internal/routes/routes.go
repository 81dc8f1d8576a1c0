package routes

import (
	"github.com/gin-gonic/gin"

	"curator/internal/handlers"
	"curator/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	jwtSecret []byte,
	taskHandler *handlers.TaskHandler,
	curationHandler *handlers.CurationHandler,
) *gin.Engine {

	// ---- public
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	// ---- protected
	r.Use(middleware.AuthMiddleware(jwtSecret))

	// TASKS (project-scoped)
	tasks := r.Group("/projects/:project/tasks")
	{
		tasks.POST("", taskHandler.Create)
		tasks.GET("", taskHandler.List)
		tasks.GET("/:task", taskHandler.GetByID)
		tasks.POST("/:task/reorder", taskHandler.Reorder)
		tasks.POST("/breakdown", taskHandler.Breakdown)
		tasks.POST("/subtasks", taskHandler.CreateSubtasks)
		tasks.PATCH("/:task/status", taskHandler.ChangeStatus)
	}

	// TASKS (global id scope)
	r.PATCH("/tasks/:task", taskHandler.Update)

	// CURATION read models
	r.GET("/users/:user/weight-metrics", curationHandler.GetWeightMetric)
	r.PATCH("/curated-tasks/:task/rank", curationHandler.Rank)

	return r
}
