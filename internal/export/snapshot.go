package export

import (
	"fmt"
	"os"
	"path/filepath"

	"kassabot/internal/models"

	"github.com/xuri/excelize/v2"
)

// sectionHeaders is the fixed column order per destination section,
// duplicated in the local snapshot for readability.
var sectionHeaders = map[models.Section][]interface{}{
	models.SectionSales: {
		"Дата", "Время", "Номер чека", "Кассир", "Товар",
		"Кол-во", "Цена", "Скидка", "Сумма", "Ставка НДС", "Оплата",
	},
	models.SectionReturns: {
		"Дата", "Время", "Товар", "Кол-во", "Сумма", "Кассир",
	},
	models.SectionInventory: {
		"Товар", "Артикул", "Остаток",
	},
	models.SectionEmployees: {
		"Имя", "ID", "Чеков", "Сумма", "Средний чек",
	},
}

// writeSnapshot сохраняет локальную xlsx-копию выгруженных данных
func (e *Exporter) writeSnapshot(cycle *models.ExportCycle, batches map[models.Section][]models.Row) (string, error) {
	if err := os.MkdirAll(e.snapshotDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	for _, category := range models.CategoryOrder {
		section := models.SectionFor(category)
		sheetName := string(section)

		if _, err := f.NewSheet(sheetName); err != nil {
			return "", fmt.Errorf("error creating sheet %s: %w", sheetName, err)
		}

		headers := sectionHeaders[section]
		if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
			return "", fmt.Errorf("error writing headers: %w", err)
		}

		style, _ := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheetName, "A1", endCell, style)

		for i, row := range batches[section] {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			values := []interface{}(row)
			if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
				return "", fmt.Errorf("error writing row: %w", err)
			}
		}
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("export_%s_%s.xlsx",
		cycle.Date.Format(models.DateLayout),
		cycle.StartedAt.Format("150405"))
	filePath := filepath.Join(e.snapshotDir, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}
