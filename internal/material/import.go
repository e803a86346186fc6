package material

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
)

type ImportResult struct {
	TotalRows    int      `json:"total_rows"`
	SuccessCount int      `json:"success_count"`
	FailedCount  int      `json:"failed_count"`
	Errors       []string `json:"errors"`
}

type ImportRow struct {
	Code     string
	Name     string
	Unit     string
	StockQty float64
	UnitCost float64
	MinStock float64
	Supplier string
}

// ImportRaw handles Excel/CSV upload for bulk raw material import.
// Existing materials are matched by code and updated; new rows are created.
func (h *Handler) ImportRaw(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	var rows []ImportRow
	fileName := strings.ToLower(header.Filename)

	if strings.HasSuffix(fileName, ".xlsx") || strings.HasSuffix(fileName, ".xls") {
		rows, err = parseExcel(file)
	} else if strings.HasSuffix(fileName, ".csv") {
		rows, err = parseCSV(file)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file format. Please upload .xlsx or .csv"})
		return
	}

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to parse file: %v", err)})
		return
	}

	result := ImportResult{
		TotalRows: len(rows),
		Errors:    []string{},
	}

	for i, row := range rows {
		if row.Name == "" || row.Code == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: code and name are required", i+2))
			result.FailedCount++
			continue
		}

		var existing database.RawMaterial
		if err := h.db.Where("code = ?", row.Code).First(&existing).Error; err == nil {
			updates := map[string]interface{}{
				"stock_qty": row.StockQty,
			}
			if row.UnitCost > 0 {
				updates["unit_cost"] = decimal.NewFromFloat(row.UnitCost)
			}
			if row.MinStock > 0 {
				updates["min_stock"] = row.MinStock
			}
			if err := h.db.Model(&existing).Updates(updates).Error; err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Failed to update %s - %v", i+2, row.Name, err))
				result.FailedCount++
				continue
			}
			result.SuccessCount++
		} else {
			unit := row.Unit
			if unit == "" {
				unit = "kg"
			}
			newMaterial := database.RawMaterial{
				Code:     row.Code,
				Name:     row.Name,
				Unit:     unit,
				StockQty: row.StockQty,
				UnitCost: decimal.NewFromFloat(row.UnitCost),
				MinStock: row.MinStock,
				Supplier: row.Supplier,
			}
			if err := h.db.Create(&newMaterial).Error; err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Failed to create %s - %v", i+2, row.Name, err))
				result.FailedCount++
				continue
			}
			result.SuccessCount++
		}
	}

	logrus.WithFields(logrus.Fields{
		"file":    header.Filename,
		"total":   result.TotalRows,
		"success": result.SuccessCount,
		"failed":  result.FailedCount,
	}).Info("raw material import completed")

	c.JSON(http.StatusOK, gin.H{
		"data":    result,
		"message": fmt.Sprintf("Import completed: %d success, %d failed", result.SuccessCount, result.FailedCount),
	})
}

// parseExcel parses .xlsx files
func parseExcel(file io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in file")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("file must have header row and at least one data row")
	}

	return parseRows(rows), nil
}

// parseCSV parses .csv files
func parseCSV(file io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("file must have header row and at least one data row")
	}

	return parseRows(records), nil
}

func parseRows(rows [][]string) []ImportRow {
	header := rows[0]
	colMap := make(map[string]int)
	for i, cell := range header {
		colMap[strings.ToLower(strings.TrimSpace(cell))] = i
	}

	pick := func(row []string, names ...string) string {
		for _, col := range names {
			if idx, ok := colMap[col]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
		}
		return ""
	}
	pickFloat := func(row []string, names ...string) float64 {
		val, _ := strconv.ParseFloat(pick(row, names...), 64)
		return val
	}

	var result []ImportRow
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}

		importRow := ImportRow{
			Code:     pick(row, "code", "material code", "كود"),
			Name:     pick(row, "name", "material name", "الاسم"),
			Unit:     pick(row, "unit", "الوحدة"),
			StockQty: pickFloat(row, "stock", "stock qty", "qty", "الكمية"),
			UnitCost: pickFloat(row, "unit cost", "cost", "price", "التكلفة"),
			MinStock: pickFloat(row, "min stock", "minimum", "الحد الأدنى"),
			Supplier: pick(row, "supplier", "المورد"),
		}

		if importRow.Name != "" {
			result = append(result, importRow)
		}
	}

	return result
}
