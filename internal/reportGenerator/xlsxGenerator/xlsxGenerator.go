package xlsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/ktimofeev/robinfolio/internal/model"
	"github.com/ktimofeev/robinfolio/utils"
)

const (
	summarySheet  = "Summary"
	sellLotsSheet = "Sell lots"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate renders the reconciliation output into a two-sheet workbook:
// the per-security summary and the full sell lot breakdown.
func (g *XLSXGenerator) Generate(ctx context.Context, results []model.SecurityResult) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	if len(results) == 0 {
		return nil, "", errors.New("empty results")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillSummarySheet(f, results); err != nil {
		slog.Error("got error while filling summary sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err := g.fillSellLotsSheet(f, results); err != nil {
		slog.Error("got error while filling sell lots sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillSummarySheet(f *excelize.File, results []model.SecurityResult) error {
	_, err := f.NewSheet(summarySheet)
	if err != nil {
		return err
	}

	if err := g.writeHeader(f, summarySheet, []string{"ticker", "open shares", "avg unit cost", "realized gain", "unrealized gain", "needs review"}, "#cfe2f3"); err != nil {
		return err
	}

	for i, res := range results {
		row := i + 2
		s := res.Summary
		_ = f.SetCellStr(summarySheet, fmt.Sprintf("A%d", row), s.Ticker)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), s.OpenQuantity.InexactFloat64())
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), s.AvgUnitCost.Round(4).InexactFloat64())
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), s.RealizedGain.Round(2).InexactFloat64())
		if s.HasPrice {
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("E%d", row), s.UnrealizedGain.Round(2).InexactFloat64())
		}
		_ = f.SetCellBool(summarySheet, fmt.Sprintf("F%d", row), s.Stale)
	}

	return nil
}

func (g *XLSXGenerator) fillSellLotsSheet(f *excelize.File, results []model.SecurityResult) error {
	_, err := f.NewSheet(sellLotsSheet)
	if err != nil {
		return err
	}

	if err := g.writeHeader(f, sellLotsSheet, []string{"ticker", "sell order", "bought in", "shares", "cost basis", "proceeds", "fee", "gain"}, "#d9ead3"); err != nil {
		return err
	}

	row := 2
	for _, res := range results {
		for _, sl := range res.SellLots {
			_ = f.SetCellStr(sellLotsSheet, fmt.Sprintf("A%d", row), sl.Ticker)
			_ = f.SetCellStr(sellLotsSheet, fmt.Sprintf("B%d", row), sl.SellOrderID)
			_ = f.SetCellStr(sellLotsSheet, fmt.Sprintf("C%d", row), sl.BuyOrderID)
			_ = f.SetCellValue(sellLotsSheet, fmt.Sprintf("D%d", row), sl.Quantity.InexactFloat64())
			_ = f.SetCellValue(sellLotsSheet, fmt.Sprintf("E%d", row), sl.CostBasis.Round(2).InexactFloat64())
			_ = f.SetCellValue(sellLotsSheet, fmt.Sprintf("F%d", row), sl.Proceeds.Round(2).InexactFloat64())
			_ = f.SetCellValue(sellLotsSheet, fmt.Sprintf("G%d", row), sl.FeeShare.InexactFloat64())
			_ = f.SetCellValue(sellLotsSheet, fmt.Sprintf("H%d", row), sl.Gain.Round(2).InexactFloat64())
			row++
		}
	}

	return nil
}

func (g *XLSXGenerator) writeHeader(f *excelize.File, sheet string, columns []string, color string) error {
	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
	if err != nil {
		return err
	}

	for i, column := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		_ = f.SetCellStr(sheet, cell, column)
		if err := f.SetCellStyle(sheet, cell, cell, styleID); err != nil {
			return fmt.Errorf("apply header style: %w", err)
		}
	}

	return nil
}
