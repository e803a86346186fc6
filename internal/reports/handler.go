package reports

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
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

type ReportRequest struct {
	StartDate string `form:"start_date"` // Format: 2024-01-01
	EndDate   string `form:"end_date"`   // Format: 2024-01-31
}

// dateRange defaults to the current month when no bounds are given
func dateRange(req ReportRequest) (time.Time, time.Time) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), now.Month()+1, 0, 23, 59, 59, 0, now.Location())

	if req.StartDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			start = parsed
		}
	}
	if req.EndDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			end = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 0, parsed.Location())
		}
	}
	return start, end
}

type DailyTotal struct {
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	Documents int             `json:"documents"`
}

type SalesReport struct {
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalReturns  decimal.Decimal `json:"total_returns"`
	NetSales      decimal.Decimal `json:"net_sales"`
	TotalCOGS     decimal.Decimal `json:"total_cogs"`
	GrossProfit   decimal.Decimal `json:"gross_profit"`
	InvoiceCount  int             `json:"invoice_count"`
	AveragePerInv decimal.Decimal `json:"average_per_invoice"`
	Daily         []DailyTotal    `json:"daily"`
}

// GetSalesReport summarizes posted sales invoices net of sales returns,
// with cost of goods sold derived from product unit costs.
func (h *Handler) GetSalesReport(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end := dateRange(req)

	var report SalesReport
	report.StartDate = start.Format("2006-01-02")
	report.EndDate = end.Format("2006-01-02")

	var totals struct {
		Total decimal.Decimal
		Count int64
	}
	h.db.Model(&database.Invoice{}).
		Select("COALESCE(SUM(total), 0) as total, COUNT(*) as count").
		Where("kind = ? AND status = ? AND date >= ? AND date <= ?",
			database.InvoiceSales, database.StatusPosted, start, end).
		Scan(&totals)
	report.TotalSales = totals.Total
	report.InvoiceCount = int(totals.Count)
	if totals.Count > 0 {
		report.AveragePerInv = totals.Total.Div(decimal.NewFromInt(totals.Count))
	}

	var returns struct {
		Total decimal.Decimal
	}
	h.db.Model(&database.Invoice{}).
		Select("COALESCE(SUM(total), 0) as total").
		Where("kind = ? AND status = ? AND date >= ? AND date <= ?",
			database.InvoiceSalesReturn, database.StatusPosted, start, end).
		Scan(&returns)
	report.TotalReturns = returns.Total
	report.NetSales = report.TotalSales.Sub(report.TotalReturns)

	report.TotalCOGS = h.periodCOGS(start, end)
	report.GrossProfit = report.NetSales.Sub(report.TotalCOGS)

	rows, _ := h.db.Model(&database.Invoice{}).
		Select("DATE(date) as date, COALESCE(SUM(total), 0) as total, COUNT(*) as documents").
		Where("kind = ? AND status = ? AND date >= ? AND date <= ?",
			database.InvoiceSales, database.StatusPosted, start, end).
		Group("DATE(date)").
		Order("date ASC").
		Rows()
	if rows != nil {
		defer rows.Close()
		for rows.Next() {
			var daily DailyTotal
			rows.Scan(&daily.Date, &daily.Total, &daily.Documents)
			report.Daily = append(report.Daily, daily)
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

// periodCOGS prices every finished product sold in the period at its
// current unit cost, netting out return quantities.
func (h *Handler) periodCOGS(start, end time.Time) decimal.Decimal {
	type soldLine struct {
		ItemID   uuid.UUID
		Kind     string
		Quantity float64
	}

	var lines []soldLine
	h.db.Model(&database.InvoiceItem{}).
		Select("invoice_items.item_id, invoices.kind, SUM(invoice_items.quantity) as quantity").
		Joins("JOIN invoices ON invoice_items.invoice_id = invoices.id").
		Where("invoices.kind IN ? AND invoices.status = ? AND invoices.date >= ? AND invoices.date <= ?",
			[]string{database.InvoiceSales, database.InvoiceSalesReturn}, database.StatusPosted, start, end).
		Group("invoice_items.item_id, invoices.kind").
		Scan(&lines)

	netQty := map[uuid.UUID]float64{}
	for _, line := range lines {
		if line.Kind == database.InvoiceSalesReturn {
			netQty[line.ItemID] -= line.Quantity
		} else {
			netQty[line.ItemID] += line.Quantity
		}
	}

	total := decimal.Zero
	for id, qty := range netQty {
		if qty == 0 {
			continue
		}
		var fp database.FinishedProduct
		if err := h.db.First(&fp, "id = ?", id).Error; err != nil {
			continue
		}
		total = total.Add(fp.UnitCost.Mul(decimal.NewFromFloat(qty)))
	}
	return total
}

type PurchaseReport struct {
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	TotalReturns   decimal.Decimal `json:"total_returns"`
	NetPurchases   decimal.Decimal `json:"net_purchases"`
	InvoiceCount   int             `json:"invoice_count"`
	Daily          []DailyTotal    `json:"daily"`
}

// GetPurchaseReport summarizes posted purchase invoices net of returns
func (h *Handler) GetPurchaseReport(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end := dateRange(req)

	var report PurchaseReport
	report.StartDate = start.Format("2006-01-02")
	report.EndDate = end.Format("2006-01-02")

	var totals struct {
		Total decimal.Decimal
		Count int64
	}
	h.db.Model(&database.Invoice{}).
		Select("COALESCE(SUM(total), 0) as total, COUNT(*) as count").
		Where("kind = ? AND status = ? AND date >= ? AND date <= ?",
			database.InvoicePurchase, database.StatusPosted, start, end).
		Scan(&totals)
	report.TotalPurchases = totals.Total
	report.InvoiceCount = int(totals.Count)

	var returns struct {
		Total decimal.Decimal
	}
	h.db.Model(&database.Invoice{}).
		Select("COALESCE(SUM(total), 0) as total").
		Where("kind = ? AND status = ? AND date >= ? AND date <= ?",
			database.InvoicePurchaseReturn, database.StatusPosted, start, end).
		Scan(&returns)
	report.TotalReturns = returns.Total
	report.NetPurchases = report.TotalPurchases.Sub(report.TotalReturns)

	rows, _ := h.db.Model(&database.Invoice{}).
		Select("DATE(date) as date, COALESCE(SUM(total), 0) as total, COUNT(*) as documents").
		Where("kind = ? AND status = ? AND date >= ? AND date <= ?",
			database.InvoicePurchase, database.StatusPosted, start, end).
		Group("DATE(date)").
		Order("date ASC").
		Rows()
	if rows != nil {
		defer rows.Close()
		for rows.Next() {
			var daily DailyTotal
			rows.Scan(&daily.Date, &daily.Total, &daily.Documents)
			report.Daily = append(report.Daily, daily)
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

type ProductSales struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	TotalQty    float64         `json:"total_qty"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	Profit      decimal.Decimal `json:"profit"`
}

// GetProductSalesReport breaks posted sales down by finished product
func (h *Handler) GetProductSalesReport(c *gin.Context) {
	var req ReportRequest
	c.ShouldBindQuery(&req)
	start, end := dateRange(req)

	type productLine struct {
		ItemID     uuid.UUID
		Name       string
		TotalQty   float64
		TotalSales decimal.Decimal
	}

	var lines []productLine
	h.db.Model(&database.InvoiceItem{}).
		Select("invoice_items.item_id, invoice_items.name, SUM(invoice_items.quantity) as total_qty, SUM(invoice_items.total) as total_sales").
		Joins("JOIN invoices ON invoice_items.invoice_id = invoices.id").
		Where("invoices.kind = ? AND invoices.status = ? AND invoices.date >= ? AND invoices.date <= ?",
			database.InvoiceSales, database.StatusPosted, start, end).
		Group("invoice_items.item_id, invoice_items.name").
		Order("total_sales DESC").
		Scan(&lines)

	products := make([]ProductSales, 0, len(lines))
	for _, line := range lines {
		var fp database.FinishedProduct
		unitCost := decimal.Zero
		if err := h.db.First(&fp, "id = ?", line.ItemID).Error; err == nil {
			unitCost = fp.UnitCost
		}
		totalCost := unitCost.Mul(decimal.NewFromFloat(line.TotalQty))
		products = append(products, ProductSales{
			ProductID:   line.ItemID.String(),
			ProductName: line.Name,
			TotalQty:    line.TotalQty,
			TotalSales:  line.TotalSales,
			TotalCost:   totalCost,
			Profit:      line.TotalSales.Sub(totalCost),
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": products})
}

type ValuationLine struct {
	ItemType string          `json:"item_type"`
	Count    int             `json:"count"`
	Value    decimal.Decimal `json:"value"`
}

// GetInventoryValuation prices all on-hand stock at current unit costs
func (h *Handler) GetInventoryValuation(c *gin.Context) {
	lines := make([]ValuationLine, 0, 4)
	total := decimal.Zero

	var raw []database.RawMaterial
	h.db.Find(&raw)
	value := decimal.Zero
	for _, m := range raw {
		value = value.Add(m.UnitCost.Mul(decimal.NewFromFloat(m.StockQty)))
	}
	lines = append(lines, ValuationLine{ItemType: database.ItemRawMaterial, Count: len(raw), Value: value})
	total = total.Add(value)

	var packaging []database.PackagingMaterial
	h.db.Find(&packaging)
	value = decimal.Zero
	for _, m := range packaging {
		value = value.Add(m.UnitCost.Mul(decimal.NewFromFloat(m.StockQty)))
	}
	lines = append(lines, ValuationLine{ItemType: database.ItemPackagingMaterial, Count: len(packaging), Value: value})
	total = total.Add(value)

	var semi []database.SemiFinished
	h.db.Find(&semi)
	value = decimal.Zero
	for _, m := range semi {
		value = value.Add(m.UnitCost.Mul(decimal.NewFromFloat(m.StockQty)))
	}
	lines = append(lines, ValuationLine{ItemType: database.ItemSemiFinished, Count: len(semi), Value: value})
	total = total.Add(value)

	var finished []database.FinishedProduct
	h.db.Find(&finished)
	value = decimal.Zero
	for _, m := range finished {
		value = value.Add(m.UnitCost.Mul(decimal.NewFromFloat(m.StockQty)))
	}
	lines = append(lines, ValuationLine{ItemType: database.ItemFinishedProduct, Count: len(finished), Value: value})
	total = total.Add(value)

	c.JSON(http.StatusOK, gin.H{"data": lines, "total_value": total})
}
