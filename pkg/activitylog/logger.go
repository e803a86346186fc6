package activitylog

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
)

// Logger handles activity logging for the audit trail
type Logger struct {
	db *gorm.DB
}

// NewLogger creates a new activity logger
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// LogActivity creates an activity record for the current user
func (l *Logger) LogActivity(c *gin.Context, action, entityType string, entityID *uuid.UUID, details interface{}) error {
	userIDStr := c.GetString("user_id")
	userID, _ := uuid.Parse(userIDStr)

	detailsJSON := ""
	if details != nil {
		if jsonBytes, err := json.Marshal(details); err == nil {
			detailsJSON = string(jsonBytes)
		}
	}

	record := database.ActivityRecord{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    detailsJSON,
		IPAddress:  c.ClientIP(),
	}

	return l.db.Create(&record).Error
}

// LogTransition logs a document lifecycle transition (post, void, complete, cancel)
func (l *Logger) LogTransition(c *gin.Context, action, entityType string, entityID uuid.UUID, code string) error {
	return l.LogActivity(c, action, entityType, &entityID, map[string]interface{}{
		"code": code,
	})
}

// LogStockAdjust logs a manual stock adjustment
func (l *Logger) LogStockAdjust(c *gin.Context, entityType string, entityID uuid.UUID, adjustment float64, reason string) error {
	return l.LogActivity(c, "stock_adjust", entityType, &entityID, map[string]interface{}{
		"adjustment": adjustment,
		"reason":     reason,
	})
}

// LogDelete logs a delete action
func (l *Logger) LogDelete(c *gin.Context, entityType string, entityID uuid.UUID, oldData interface{}) error {
	return l.LogActivity(c, "delete", entityType, &entityID, map[string]interface{}{
		"deleted": oldData,
	})
}
