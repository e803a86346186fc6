package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
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

type CreateStaffInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=manager staff"`
}

type UpdateStaffInput struct {
	Name     string `json:"name"`
	Role     string `json:"role" binding:"omitempty,oneof=manager staff"`
	IsActive *bool  `json:"is_active"`
}

// ListStaff returns everyone except the owner
func (h *Handler) ListStaff(c *gin.Context) {
	var staff []database.User
	if err := h.db.Where("role != 'owner'").
		Order("created_at DESC").
		Find(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": staff})
}

// CreateStaff adds a staff account. Route-level role middleware restricts
// this to the owner.
func (h *Handler) CreateStaff(c *gin.Context) {
	var input CreateStaffInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	h.db.Model(&database.User{}).Where("email = ?", input.Email).Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	staff := database.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         input.Role,
		IsActive:     true,
	}
	if err := h.db.Create(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogActivity(c, "create", "user", &staff.ID, gin.H{"email": staff.Email, "role": staff.Role})
	c.JSON(http.StatusCreated, gin.H{"data": staff})
}

// UpdateStaff edits name, role or active flag. The owner account cannot
// be modified here.
func (h *Handler) UpdateStaff(c *gin.Context) {
	var staff database.User
	if err := h.db.First(&staff, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if staff.Role == "owner" {
		c.JSON(http.StatusForbidden, gin.H{"error": "The owner account cannot be modified"})
		return
	}

	var input UpdateStaffInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Name != "" {
		staff.Name = input.Name
	}
	if input.Role != "" {
		staff.Role = input.Role
	}
	if input.IsActive != nil {
		staff.IsActive = *input.IsActive
	}
	if err := h.db.Save(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogActivity(c, "update", "user", &staff.ID, gin.H{"role": staff.Role, "is_active": staff.IsActive})
	c.JSON(http.StatusOK, gin.H{"data": staff})
}

// DeleteStaff deactivates the account. Rows are kept so the audit trail
// stays attributable.
func (h *Handler) DeleteStaff(c *gin.Context) {
	var staff database.User
	if err := h.db.First(&staff, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if staff.Role == "owner" {
		c.JSON(http.StatusForbidden, gin.H{"error": "The owner account cannot be removed"})
		return
	}

	staff.IsActive = false
	if err := h.db.Save(&staff).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogDelete(c, "user", staff.ID, staff.Email)
	c.JSON(http.StatusOK, gin.H{"message": "User deactivated"})
}

// ListActivity returns the audit trail, newest first
func (h *Handler) ListActivity(c *gin.Context) {
	var records []database.ActivityRecord
	query := h.db.Preload("User").Order("created_at DESC").Limit(200)
	if entityType := c.Query("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}
