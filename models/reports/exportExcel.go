package reports

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/xuri/excelize/v2"
)

const XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExcelExporter interface {
	GetCellValues() []interface{}
}

type payoutLine struct {
	earning  *models.DriverEarning
	delivery *models.Delivery
}

func (l payoutLine) GetCellValues() []interface{} {
	tracking, fee := "", ""
	if l.delivery != nil {
		tracking = l.delivery.TrackingCode
		fee = l.delivery.DeliveryFee.StringFixed(2)
	}
	return []interface{}{
		l.earning.DeliveryId,
		tracking,
		l.earning.EarnedAt.Format("2006-01-02 15:04"),
		fee,
		l.earning.Amount.StringFixed(2),
	}
}

func (p *DriverPerformance) GetCellValues() []interface{} {
	return []interface{}{
		p.DriverName, p.Total, p.Delivered, p.Failed, p.Cancelled, p.Open,
		p.SuccessRate, p.AvgDeliveryMinutes, p.DeliveryFees.StringFixed(2), p.Earnings.StringFixed(2),
	}
}

func writeSheet(f *excelize.File, sheetName string, startRow int, data []ExcelExporter, headings ...string) (int, error) {
	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, startRow)
		if err != nil {
			return 0, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return 0, err
		}
	}
	rowNo := startRow + 1
	for _, d := range data {
		values := d.GetCellValues()
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", rowNo), &values); err != nil {
			return 0, err
		}
		rowNo++
	}
	return rowNo, nil
}

// ExportPayoutStatement renders one payout with every delivery it pays for.
func ExportPayoutStatement(ctx context.Context, payoutId int) (*excelize.File, error) {
	payout, err := models.GetDriverPayout(ctx, payoutId)
	if err != nil {
		return nil, err
	}
	driver, err := models.GetDriver(ctx, payout.DriverId)
	if err != nil {
		return nil, err
	}
	storeId, _ := utils.GetStoreIdFromContext(ctx)

	deliveryIds := make([]int, 0, len(payout.Earnings))
	for _, e := range payout.Earnings {
		deliveryIds = append(deliveryIds, e.DeliveryId)
	}
	deliveries := map[int]*models.Delivery{}
	if len(deliveryIds) > 0 {
		list, err := models.GetDeliveriesByIds(ctx, storeId, deliveryIds)
		if err != nil {
			return nil, err
		}
		for _, d := range list {
			deliveries[d.ID] = d
		}
	}

	f := excelize.NewFile()
	sheet := "Payout"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	header := [][]interface{}{
		{"Driver", driver.Name},
		{"Phone", driver.Phone},
		{"Period", fmt.Sprintf("%s - %s", payout.PeriodStart.Format("2006-01-02"), payout.PeriodEnd.Format("2006-01-02"))},
		{"Status", string(payout.Status)},
		{"Deliveries", payout.DeliveryCount},
		{"Total", utils.FormatMNT(payout.TotalAmount)},
	}
	for i, row := range header {
		row := row
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return nil, err
		}
	}

	lines := make([]ExcelExporter, 0, len(payout.Earnings))
	for i := range payout.Earnings {
		e := &payout.Earnings[i]
		lines = append(lines, payoutLine{earning: e, delivery: deliveries[e.DeliveryId]})
	}
	if _, err := writeSheet(f, sheet, len(header)+2, lines,
		"Delivery", "Tracking code", "Delivered at", "Delivery fee", "Earning"); err != nil {
		return nil, err
	}
	return f, nil
}

func ExportDeliveryPerformance(report *DeliveryPerformanceReport) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Performance"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	rows := make([]ExcelExporter, 0, len(report.Drivers)+1)
	for _, r := range report.Drivers {
		rows = append(rows, r)
	}
	totals := report.Totals
	totals.DriverName = "Total"
	rows = append(rows, &totals)
	if _, err := writeSheet(f, sheet, 1, rows,
		"Driver", "Total", "Delivered", "Failed", "Cancelled", "Open",
		"Success %", "Avg minutes", "Delivery fees", "Earnings"); err != nil {
		return nil, err
	}
	return f, nil
}
