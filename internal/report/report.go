// Package report renders processing statistics for humans: an xlsx workbook
// per batch and aggregate summary figures across years.
package report

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"

	"github.com/chronomaps/footsteps/internal/model"
)

// Summary aggregates per-year statistics across a whole batch.
type Summary struct {
	Years            int
	TotalDots        int
	TotalPopulation  float64
	MeanDotsPerYear  float64
	StdDevDots       float64
	MedianPopulation float64
	TotalElapsed     time.Duration
}

// Summarize computes batch figures from per-year stats.
func Summarize(stats []model.ProcessingStats) Summary {
	s := Summary{Years: len(stats)}
	if len(stats) == 0 {
		return s
	}

	dots := make([]float64, len(stats))
	pops := make([]float64, len(stats))
	for i, st := range stats {
		dots[i] = float64(st.DotsCreated)
		pops[i] = st.TotalPopulation
		s.TotalDots += st.DotsCreated
		s.TotalPopulation += st.TotalPopulation
		s.TotalElapsed += st.Elapsed
	}

	s.MeanDotsPerYear = stat.Mean(dots, nil)
	if len(dots) > 1 {
		s.StdDevDots = stat.StdDev(dots, nil)
	}

	sort.Float64s(pops)
	s.MedianPopulation = stat.Quantile(0.5, stat.Empirical, pops, nil)

	return s
}

var runColumns = []string{
	"Year", "Cells", "Valid Cells", "Dots", "Population",
	"Coordinate Errors", "Threshold Excluded", "Spacing Fallbacks", "Elapsed",
}

// WriteWorkbook writes per-year rows plus a summary sheet to an xlsx file.
// Rows are ordered by year regardless of processing order.
func WriteWorkbook(path string, stats []model.ProcessingStats) error {
	ordered := make([]model.ProcessingStats, len(stats))
	copy(ordered, stats)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Year < ordered[j].Year })

	printer := message.NewPrinter(language.English)

	file := xlsx.NewFile()
	runs, err := file.AddSheet("Runs")
	if err != nil {
		return eris.Wrap(err, "report: add runs sheet")
	}

	header := runs.AddRow()
	for _, col := range runColumns {
		header.AddCell().Value = col
	}

	for _, st := range ordered {
		row := runs.AddRow()
		row.AddCell().SetInt(st.Year)
		row.AddCell().SetInt(st.CellsProcessed)
		row.AddCell().SetInt(st.ValidCells)
		row.AddCell().SetInt(st.DotsCreated)
		row.AddCell().Value = printer.Sprintf("%.0f", st.TotalPopulation)
		row.AddCell().SetInt(st.CoordinateErrors)
		row.AddCell().SetInt(st.ThresholdExcluded)
		row.AddCell().SetInt(st.SpacingFallbacks)
		row.AddCell().Value = st.Elapsed.Round(time.Millisecond).String()
	}

	summary, err := file.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	sum := Summarize(stats)
	addSummaryRow(summary, "Years processed", printer.Sprintf("%d", sum.Years))
	addSummaryRow(summary, "Total dots", printer.Sprintf("%d", sum.TotalDots))
	addSummaryRow(summary, "Total population", printer.Sprintf("%.0f", sum.TotalPopulation))
	addSummaryRow(summary, "Mean dots per year", printer.Sprintf("%.1f", sum.MeanDotsPerYear))
	addSummaryRow(summary, "Std dev dots", printer.Sprintf("%.1f", sum.StdDevDots))
	addSummaryRow(summary, "Median population", printer.Sprintf("%.0f", sum.MedianPopulation))
	addSummaryRow(summary, "Total elapsed", sum.TotalElapsed.Round(time.Millisecond).String())

	return eris.Wrapf(file.Save(path), "report: save workbook %s", path)
}

func addSummaryRow(sheet *xlsx.Sheet, label, value string) {
	row := sheet.AddRow()
	row.AddCell().Value = label
	row.AddCell().Value = value
}
