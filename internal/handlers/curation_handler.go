package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"curator/internal/services"
)

type CurationHandler struct {
	curation services.CurationService
}

func NewCurationHandler(curation services.CurationService) *CurationHandler {
	return &CurationHandler{curation: curation}
}

// GET /users/:user/weight-metrics?date=2006-01-02
func (h *CurationHandler) GetWeightMetric(c *gin.Context) {
	callerID, _ := getUserID(c)
	userID, ok := paramID(c, "user")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if userID != callerID {
		// metrics are private to their user
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	date := services.Today()
	if v := c.Query("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "must be YYYY-MM-DD", "field": "date"})
			return
		}
		date = d
	}

	metric, err := h.curation.WeightMetricFor(c.Request.Context(), userID, date)
	if err != nil {
		log.Printf("[curation][metric][err] user=%d date=%s: %v", userID, date.Format("2006-01-02"), err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metric)
}

// PATCH /tasks/:task/rank — re-rank a curated task
// body {current_index: int>=1}
func (h *CurationHandler) Rank(c *gin.Context) {
	userID, _ := getUserID(c)
	curatedID, ok := paramID(c, "task")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req struct {
		CurrentIndex int `json:"current_index" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "field": "current_index"})
		return
	}

	ct, err := h.curation.RankCurated(c.Request.Context(), userID, curatedID, req.CurrentIndex)
	if err != nil {
		log.Printf("[curation][rank][err] id=%d: %v", curatedID, err)
		respondError(c, err)
		return
	}
	log.Printf("[curation][rank][ok] id=%d index=%d moved=%d", ct.ID, ct.CurrentIndex, ct.MovedCount)
	c.JSON(http.StatusOK, ct)
}
