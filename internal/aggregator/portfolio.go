package aggregator

import (
	"sort"
	"time"

	"collections-etl-go/internal/calendar"
	"collections-etl-go/internal/types"
)

type portfolioKey struct {
	portfolio      string
	assignmentDate time.Time
	lineOfBusiness string
}

type portfolioAcc struct {
	records   int
	accounts  map[string]struct{}
	customers map[int64]struct{}
	amountDue float64
	paid      float64
}

// buildPortfolioBase aggregates assignments by portfolio dimensions regardless of
// whether the accounts were ever contacted, joined with summed debt and payments
// by account. Unmatched accounts get zero amounts, never null.
func (t *Transformer) buildPortfolioBase(period types.Period, assignments []types.AssignmentRecord, debt []types.DebtSnapshot, payments []types.PaymentRecord) []types.PortfolioBaseRow {
	dueByAccount := make(map[string]float64, len(debt))
	docsByAccount := make(map[string][]string, len(debt))
	for _, d := range debt {
		dueByAccount[d.AccountID] += d.AmountDue
		docsByAccount[d.AccountID] = append(docsByAccount[d.AccountID], d.DocumentID)
	}
	paidByDocument := make(map[string]float64, len(payments))
	for _, p := range payments {
		paidByDocument[p.DocumentID] += p.AmountPaid
	}

	accs := map[portfolioKey]*portfolioAcc{}
	for _, a := range assignments {
		k := portfolioKey{
			portfolio:      portfolioType(a.SourceFile),
			assignmentDate: calendar.DateOf(period.AssignmentDate),
			lineOfBusiness: a.LineOfBusiness,
		}
		acc, ok := accs[k]
		if !ok {
			acc = &portfolioAcc{accounts: map[string]struct{}{}, customers: map[int64]struct{}{}}
			accs[k] = acc
		}
		acc.records++
		acc.customers[a.CustomerID] = struct{}{}
		if _, seen := acc.accounts[a.AccountID]; !seen {
			acc.accounts[a.AccountID] = struct{}{}
			acc.amountDue += dueByAccount[a.AccountID]
			for _, doc := range docsByAccount[a.AccountID] {
				acc.paid += paidByDocument[doc]
			}
		}
	}

	rows := make([]types.PortfolioBaseRow, 0, len(accs))
	for k, acc := range accs {
		rows = append(rows, types.PortfolioBaseRow{
			Portfolio:      k.portfolio,
			AssignmentDate: k.assignmentDate,
			LineOfBusiness: k.lineOfBusiness,
			TotalRecords:   acc.records,
			UniqueAccounts: len(acc.accounts),
			UniqueClients:  len(acc.customers),
			AmountDue:      acc.amountDue,
			AmountPaid:     acc.paid,
			RecoveryRate:   ratio(acc.paid, acc.amountDue),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Portfolio != b.Portfolio {
			return a.Portfolio < b.Portfolio
		}
		if !a.AssignmentDate.Equal(b.AssignmentDate) {
			return a.AssignmentDate.Before(b.AssignmentDate)
		}
		return a.LineOfBusiness < b.LineOfBusiness
	})
	return rows
}
