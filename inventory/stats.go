/*
stats.go - Derived daily and warning statistics

PURPOSE:
  Read-only aggregation over the prescription ledger and the warning
  list. Daily windows are calendar-local: yesterday is the previous day
  from 00:00:00 to 23:59:59.999, today runs from midnight to now.
  Monetary sums are rounded to 2 decimals at the end, not per step.
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Period selects the daily stats window.
type Period string

const (
	PeriodYesterday Period = "yesterday"
	PeriodToday     Period = "today"
)

// StatsService aggregates ledgers into display summaries.
type StatsService struct {
	prescriptions *PrescriptionService
	drugs         *DrugRegistry

	// Now anchors the daily windows; tests may replace it.
	Now func() time.Time
}

func NewStatsService(prescriptions *PrescriptionService, drugs *DrugRegistry) *StatsService {
	return &StatsService{prescriptions: prescriptions, drugs: drugs, Now: time.Now}
}

// DailyDrugStat is one drug's aggregate within a daily window.
type DailyDrugStat struct {
	Name   string  `json:"name"`
	Grams  float64 `json:"grams"`
	Amount float64 `json:"amount"`
}

// DailyStats summarizes all prescriptions within one window.
type DailyStats struct {
	TotalGrams  float64         `json:"totalGrams"`
	TotalTypes  int             `json:"totalTypes"` // distinct drugs
	TotalAmount float64         `json:"totalAmount"`
	DrugList    []DailyDrugStat `json:"drugList"`
}

// window resolves a period to its half-open local-time range.
func (s *StatsService) window(period Period) (time.Time, time.Time, error) {
	now := s.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch period {
	case PeriodYesterday:
		start := midnight.AddDate(0, 0, -1)
		end := midnight.Add(-time.Millisecond) // 23:59:59.999 of yesterday
		return start, end, nil
	case PeriodToday:
		return midnight, now, nil
	default:
		return time.Time{}, time.Time{}, &ValidationError{Field: "period", Reason: fmt.Sprintf("unknown period %q", period)}
	}
}

// Daily aggregates per-drug grams and cost over the period's
// prescriptions.
func (s *StatsService) Daily(ctx context.Context, period Period) (*DailyStats, error) {
	start, end, err := s.window(period)
	if err != nil {
		return nil, err
	}

	prescriptions, err := s.prescriptions.ByTimeRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	type acc struct {
		grams  decimal.Decimal
		amount decimal.Decimal
	}
	perDrug := map[string]*acc{}
	order := []string{} // first-seen order, maps do not keep it
	totalGrams := decimal.Zero
	totalAmount := decimal.Zero

	for _, p := range prescriptions {
		for _, line := range p.DrugList {
			a, seen := perDrug[line.Name]
			if !seen {
				a = &acc{}
				perDrug[line.Name] = a
				order = append(order, line.Name)
			}
			a.grams = a.grams.Add(dec(line.Grams))
			a.amount = a.amount.Add(dec(line.Amount))
			totalGrams = totalGrams.Add(dec(line.Grams))
			totalAmount = totalAmount.Add(dec(line.Amount))
		}
	}

	stats := &DailyStats{DrugList: make([]DailyDrugStat, 0, len(order))}
	for _, name := range order {
		a := perDrug[name]
		grams, _ := round2d(a.grams).Float64()
		amount, _ := round2d(a.amount).Float64()
		stats.DrugList = append(stats.DrugList, DailyDrugStat{Name: name, Grams: grams, Amount: amount})
	}
	stats.TotalGrams, _ = round2d(totalGrams).Float64()
	stats.TotalTypes = len(order)
	stats.TotalAmount, _ = round2d(totalAmount).Float64()
	return stats, nil
}

// WarningItem is one low-stock drug prepared for display.
type WarningItem struct {
	Name         string  `json:"name"`
	CurrentStock float64 `json:"currentStock"` // rounded for display
	MinStock     float64 `json:"minStock"`
}

// WarningStats wraps the registry warning list.
type WarningStats struct {
	Count int           `json:"count"`
	List  []WarningItem `json:"list"`
}

// Warnings returns the low-stock summary.
func (s *StatsService) Warnings(ctx context.Context) (*WarningStats, error) {
	warnings, err := s.drugs.WarningList(ctx)
	if err != nil {
		return nil, err
	}

	stats := &WarningStats{Count: len(warnings), List: make([]WarningItem, 0, len(warnings))}
	for _, w := range warnings {
		stats.List = append(stats.List, WarningItem{
			Name:         w.Name,
			CurrentStock: Round2(w.CurrentStock),
			MinStock:     w.MinStock,
		})
	}
	return stats, nil
}
