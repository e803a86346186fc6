package order

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yasminehelmy/cosmetra-backend/pkg/activitylog"
	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
)

type Handler struct {
	db    *gorm.DB
	audit *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, audit: activitylog.NewLogger(db)}
}

// generateCode builds a document code like PRO-20240115-4821
func generateCode(prefix string) string {
	return fmt.Sprintf("%s-%s-%d", prefix, time.Now().Format("20060102"), time.Now().UnixNano()%10000)
}

func (h *Handler) allowNegativeStock() bool {
	settings, err := database.GetSettings(h.db)
	if err != nil {
		return false
	}
	return settings.AllowNegativeStock
}
