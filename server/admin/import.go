package admin

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"ctfarena/server/challenge"
	"ctfarena/server/logs"
)

var importHeaders = []string{"title", "category", "difficulty", "points", "flag", "short_description", "full_description"}

// HandleImportChallenges 从Excel批量导入题目
func HandleImportChallenges(c *gin.Context, db *sql.DB) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "NO_FILE", "message": "请上传Excel文件"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "FILE_OPEN_ERROR"})
		return
	}
	defer src.Close()

	f, err := excelize.OpenReader(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "EXCEL_PARSE_ERROR", "message": "无法解析Excel文件"})
		return
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	rows, err := f.GetRows(sheetName)
	if err != nil || len(rows) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "EMPTY_FILE", "message": "Excel文件为空或格式错误"})
		return
	}

	// 解析表头（第一行）
	headerIndex := make(map[string]int)
	for i, h := range rows[0] {
		headerIndex[strings.ToLower(strings.TrimSpace(h))] = i
	}

	getValue := func(row []string, field string) string {
		if idx, ok := headerIndex[field]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	type ImportResult struct {
		Row     int    `json:"row"`
		Title   string `json:"title"`
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	var results []ImportResult
	successCount, failCount := 0, 0

	for rowIndex := 1; rowIndex < len(rows); rowIndex++ {
		row := rows[rowIndex]
		result := ImportResult{Row: rowIndex + 1}

		title := getValue(row, "title")
		if title == "" {
			result.Message = "题目标题不能为空"
			results = append(results, result)
			failCount++
			continue
		}
		result.Title = title

		category := getValue(row, "category")
		if !challenge.ValidCategory(category) {
			result.Message = "无效的题目分类: " + category
			results = append(results, result)
			failCount++
			continue
		}

		difficulty := getValue(row, "difficulty")
		if difficulty == "" {
			difficulty = "Easy"
		}
		if !challenge.ValidDifficulty(difficulty) {
			result.Message = "无效的难度: " + difficulty
			results = append(results, result)
			failCount++
			continue
		}

		points, err := strconv.Atoi(getValue(row, "points"))
		if err != nil || points <= 0 {
			result.Message = "分值必须为正整数"
			results = append(results, result)
			failCount++
			continue
		}

		flag := getValue(row, "flag")
		if flag == "" {
			result.Message = "flag不能为空"
			results = append(results, result)
			failCount++
			continue
		}

		_, err = db.Exec(`
			INSERT INTO challenges (id, title, category, difficulty, points, flag, short_description, full_description)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.NewString(), title, category, difficulty, points, flag,
			getValue(row, "short_description"), getValue(row, "full_description"))
		if err != nil {
			result.Message = "写入失败"
			results = append(results, result)
			failCount++
			continue
		}

		result.Success = true
		result.Message = "导入成功"
		results = append(results, result)
		successCount++
	}

	userID := c.GetString("userID")
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &userID, nil, nil, c.ClientIP(),
		"批量导入题目", map[string]interface{}{"success": successCount, "fail": failCount})

	c.JSON(http.StatusOK, gin.H{
		"results":      results,
		"successCount": successCount,
		"failCount":    failCount,
	})
}

// HandleDownloadImportTemplate 下载题目导入模板
func HandleDownloadImportTemplate(c *gin.Context) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, h := range importHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"1F6FEB"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	endCell, _ := excelize.CoordinatesToCellName(len(importHeaders), 1)
	f.SetCellStyle(sheet, "A1", endCell, headerStyle)

	// 示例行
	example := []interface{}{"Basic Injection", "Web", "Easy", 100, "FLAG{example}", "Find the vulnerability", "Detailed description..."}
	for i, v := range example {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheet, cell, v)
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="challenge_import_template.xlsx"`)
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
	}
}
