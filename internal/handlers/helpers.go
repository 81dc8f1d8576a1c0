package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"curator/internal/apperr"
)

// tolerant of claim types (int / int64 / float64 / string)
func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// respondError maps the error taxonomy onto transport codes. Validation
// errors stay field-scoped; authorization errors leak no resource detail.
func respondError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
			"field": apperr.FieldOf(err),
		})
	case apperr.KindDomainRule:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.KindAuthorization:
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
