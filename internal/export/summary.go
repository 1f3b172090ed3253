package export

import "kassabot/internal/models"

// Summarize aggregates a day's sales. Returns are sales lines with a
// negative total. A zero-record day yields an all-zero summary, not an error.
func Summarize(sales []models.SaleRecord) models.SalesSummary {
	summary := models.SalesSummary{Count: len(sales)}

	for _, sale := range sales {
		summary.TotalAmount += sale.TotalAmount
		if sale.TotalAmount < 0 {
			summary.ReturnsCount++
			summary.ReturnsAmount += sale.TotalAmount
		}
	}

	if summary.ReturnsAmount < 0 {
		summary.ReturnsAmount = -summary.ReturnsAmount
	}
	if summary.Count > 0 {
		summary.AverageCheck = summary.TotalAmount / float64(summary.Count)
	}
	return summary
}
