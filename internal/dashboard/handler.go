package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

type DashboardStats struct {
	TodaySales      decimal.Decimal `json:"today_sales"`
	TodayInvoices   int             `json:"today_invoices"`
	WeekSales       decimal.Decimal `json:"week_sales"`
	WeekInvoices    int             `json:"week_invoices"`
	MonthSales      decimal.Decimal `json:"month_sales"`
	MonthInvoices   int             `json:"month_invoices"`
	OpenProduction  int             `json:"open_production_orders"`
	OpenPackaging   int             `json:"open_packaging_orders"`
	DraftInvoices   int             `json:"draft_invoices"`
	LowStockItems   int             `json:"low_stock_items"`
	TotalProducts   int             `json:"total_products"`
	TreasuryBalance decimal.Decimal `json:"treasury_balance"`
}

// GetStats returns the dashboard headline numbers
func (h *Handler) GetStats(c *gin.Context) {
	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := todayStart.AddDate(0, 0, -7)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var stats DashboardStats
	stats.TodaySales, stats.TodayInvoices = h.salesSince(todayStart)
	stats.WeekSales, stats.WeekInvoices = h.salesSince(weekStart)
	stats.MonthSales, stats.MonthInvoices = h.salesSince(monthStart)

	var count int64
	h.db.Model(&database.ProductionOrder{}).
		Where("status IN ?", []string{database.StatusPending, database.StatusInProgress}).
		Count(&count)
	stats.OpenProduction = int(count)

	h.db.Model(&database.PackagingOrder{}).
		Where("status IN ?", []string{database.StatusPending, database.StatusInProgress}).
		Count(&count)
	stats.OpenPackaging = int(count)

	h.db.Model(&database.Invoice{}).Where("status = ?", database.StatusDraft).Count(&count)
	stats.DraftInvoices = int(count)

	h.db.Model(&database.FinishedProduct{}).Where("is_active = ?", true).Count(&count)
	stats.TotalProducts = int(count)

	var lowRaw, lowPackaging int64
	h.db.Model(&database.RawMaterial{}).Where("stock_qty <= min_stock").Count(&lowRaw)
	h.db.Model(&database.PackagingMaterial{}).Where("stock_qty <= min_stock").Count(&lowPackaging)
	stats.LowStockItems = int(lowRaw + lowPackaging)

	var treasuries []database.Treasury
	h.db.Where("is_active = ?", true).Find(&treasuries)
	balance := decimal.Zero
	for _, t := range treasuries {
		balance = balance.Add(t.Balance)
	}
	stats.TreasuryBalance = balance

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (h *Handler) salesSince(start time.Time) (decimal.Decimal, int) {
	var result struct {
		Total decimal.Decimal
		Count int64
	}
	h.db.Model(&database.Invoice{}).
		Select("COALESCE(SUM(total), 0) as total, COUNT(*) as count").
		Where("kind = ? AND status = ? AND date >= ?", database.InvoiceSales, database.StatusPosted, start).
		Scan(&result)
	return result.Total, int(result.Count)
}

type TopProduct struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	TotalQty    float64         `json:"total_qty"`
	TotalSales  decimal.Decimal `json:"total_sales"`
}

// GetTopProducts returns this month's best sellers
func (h *Handler) GetTopProducts(c *gin.Context) {
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var topProducts []TopProduct
	h.db.Model(&database.InvoiceItem{}).
		Select("invoice_items.item_id as product_id, invoice_items.name as product_name, SUM(invoice_items.quantity) as total_qty, SUM(invoice_items.total) as total_sales").
		Joins("JOIN invoices ON invoice_items.invoice_id = invoices.id").
		Where("invoices.kind = ? AND invoices.status = ? AND invoices.date >= ?",
			database.InvoiceSales, database.StatusPosted, monthStart).
		Group("invoice_items.item_id, invoice_items.name").
		Order("total_sales DESC").
		Limit(10).
		Scan(&topProducts)

	c.JSON(http.StatusOK, gin.H{"data": topProducts})
}

// GetRecentDocuments returns the latest invoices and orders for the feed
func (h *Handler) GetRecentDocuments(c *gin.Context) {
	var invoices []database.Invoice
	h.db.Preload("Customer").Preload("Supplier").
		Order("created_at DESC").
		Limit(10).
		Find(&invoices)

	var production []database.ProductionOrder
	h.db.Preload("SemiFinished").
		Order("created_at DESC").
		Limit(5).
		Find(&production)

	var packaging []database.PackagingOrder
	h.db.Preload("FinishedProduct").
		Order("created_at DESC").
		Limit(5).
		Find(&packaging)

	c.JSON(http.StatusOK, gin.H{
		"invoices":          invoices,
		"production_orders": production,
		"packaging_orders":  packaging,
	})
}
