package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"curator/internal/models"
	"curator/internal/services"
)

type TaskHandler struct {
	tasks     services.TaskService
	reorder   services.ReorderService
	breakdown services.BreakdownService
}

func NewTaskHandler(tasks services.TaskService, reorder services.ReorderService, breakdown services.BreakdownService) *TaskHandler {
	return &TaskHandler{tasks: tasks, reorder: reorder, breakdown: breakdown}
}

// POST /projects/:project/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	userID, _ := getUserID(c)
	projectID, ok := paramID(c, "project")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	var req services.CreateTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[task][create][bind][err] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[task][create] user=%d project=%d title=%q parent=%v", userID, projectID, req.Title, req.ParentID)

	task, err := h.tasks.Create(c.Request.Context(), userID, projectID, req)
	if err != nil {
		log.Printf("[task][create][err] %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// GET /projects/:project/tasks
func (h *TaskHandler) List(c *gin.Context) {
	userID, _ := getUserID(c)
	projectID, ok := paramID(c, "project")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	tasks, err := h.tasks.List(c.Request.Context(), userID, projectID)
	if err != nil {
		log.Printf("[task][list][err] project=%d: %v", projectID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GET /projects/:project/tasks/:task
func (h *TaskHandler) GetByID(c *gin.Context) {
	userID, _ := getUserID(c)
	projectID, ok1 := paramID(c, "project")
	taskID, ok2 := paramID(c, "task")
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), userID, projectID, taskID)
	if err != nil {
		log.Printf("[task][get][err] id=%d: %v", taskID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// POST /projects/:project/tasks/:task/reorder
// body {new_position: int>=1, confirmed?: bool}
func (h *TaskHandler) Reorder(c *gin.Context) {
	userID, _ := getUserID(c)
	projectID, ok1 := paramID(c, "project")
	taskID, ok2 := paramID(c, "task")
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req struct {
		NewPosition int  `json:"new_position" binding:"required,min=1"`
		Confirmed   bool `json:"confirmed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[task][reorder][bind][err] %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "field": "new_position"})
		return
	}
	log.Printf("[task][reorder] user=%d task=%d new_position=%d confirmed=%v", userID, taskID, req.NewPosition, req.Confirmed)

	result, err := h.reorder.Reorder(c.Request.Context(), userID, projectID, taskID, req.NewPosition, req.Confirmed)
	if err != nil {
		log.Printf("[task][reorder][err] task=%d: %v", taskID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /projects/:project/tasks/breakdown
func (h *TaskHandler) Breakdown(c *gin.Context) {
	userID, _ := getUserID(c)
	projectID, ok := paramID(c, "project")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	var req services.BreakdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[task][breakdown][bind][err] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[task][breakdown] user=%d project=%d title=%q parent=%v", userID, projectID, req.Title, req.ParentTaskID)

	res, err := h.breakdown.Breakdown(c.Request.Context(), userID, projectID, req)
	if err != nil {
		log.Printf("[task][breakdown][err] %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /projects/:project/tasks/subtasks
// body {parent_task_id, subtasks: [{title, ...}]}
func (h *TaskHandler) CreateSubtasks(c *gin.Context) {
	userID, _ := getUserID(c)
	projectID, ok := paramID(c, "project")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	var req struct {
		ParentTaskID int64                   `json:"parent_task_id" binding:"required"`
		Subtasks     []services.SubtaskInput `json:"subtasks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[task][subtasks][bind][err] %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "field": "parent_task_id"})
		return
	}

	tasks, err := h.breakdown.CreateSubtasks(c.Request.Context(), userID, projectID, req.ParentTaskID, req.Subtasks)
	if err != nil {
		log.Printf("[task][subtasks][err] parent=%d: %v", req.ParentTaskID, err)
		respondError(c, err)
		return
	}
	log.Printf("[task][subtasks][ok] parent=%d count=%d", req.ParentTaskID, len(tasks))
	c.JSON(http.StatusCreated, gin.H{"success": true, "subtasks": tasks})
}

// PATCH /projects/:project/tasks/:task/status
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	userID, _ := getUserID(c)
	projectID, ok1 := paramID(c, "project")
	taskID, ok2 := paramID(c, "task")
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req struct {
		Status models.TaskStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "field": "status"})
		return
	}

	task, err := h.tasks.ChangeStatus(c.Request.Context(), userID, projectID, taskID, req.Status)
	if err != nil {
		log.Printf("[task][status][err] id=%d: %v", taskID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "status updated", "task": task})
}

// PATCH /tasks/:task — size (top-level only) or story points (subtasks only)
func (h *TaskHandler) Update(c *gin.Context) {
	userID, _ := getUserID(c)
	taskID, ok := paramID(c, "task")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var patch services.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), userID, taskID, patch)
	if err != nil {
		log.Printf("[task][update][err] id=%d: %v", taskID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}
