// Package finance computes the financial snapshot shown on the panel
// dashboard: reseller economics per server, profit rankings and the direct
// client run rate, all within the caller's identity scope.
//
// Reseller economics and direct-client economics are tracked separately and
// never summed into one revenue figure: resellers resell in bulk, clients
// are direct retail.
package finance

import (
	"context"
	"time"

	"github.com/gestororion/orion/internal/client"
	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/metrics"
	"github.com/gestororion/orion/internal/reseller"
	"github.com/gestororion/orion/internal/traces"
)

// Period narrows the client figures to one calendar month by due date.
type Period struct {
	Month time.Month
	Year  int
}

// ServerDetail is the aggregated economics of one upstream server across
// every reseller that resells it.
type ServerDetail struct {
	Server  string  `json:"server"`
	Ativos  int     `json:"ativos"`
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	Profit  float64 `json:"profit"`
}

// ResellerDetail is one reseller's totals across its server rows.
type ResellerDetail struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	Profit  float64 `json:"profit"`
}

// Snapshot is the full dashboard aggregate.
type Snapshot struct {
	TotalClients   int `json:"totalClients"`
	TotalResellers int `json:"totalResellers"`

	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	Profit  float64 `json:"profit"`
	// Margin is a percentage; zero when there is no revenue.
	Margin float64 `json:"margin"`

	RevenueByServer map[string]float64 `json:"revenueByServer"`
	CostByServer    map[string]float64 `json:"costByServer"`
	ProfitByServer  map[string]float64 `json:"profitByServer"`
	AtivosByServer  map[string]int     `json:"ativosByServer"`

	// ResellerRanking is the top resellers by profit, at most ten,
	// ties keeping load order.
	ResellerRanking []ResellerDetail `json:"resellerRanking"`
	MostExpensive   string           `json:"mostExpensive,omitempty"`
	MostProfitable  string           `json:"mostProfitable,omitempty"`

	// ProjectedMonthly normalizes every active client's plan to a
	// 30-day run rate.
	ProjectedMonthly float64 `json:"projectedMonthly"`

	ByReseller    []ResellerDetail `json:"byReseller"`
	ServerDetails []ServerDetail   `json:"serverDetails"`
}

// Aggregator walks resellers and clients in scope and folds them into a
// Snapshot.
type Aggregator struct {
	resellers reseller.Store
	clients   client.Store
}

// NewAggregator creates a financial aggregator over the two stores.
func NewAggregator(resellers reseller.Store, clients client.Store) *Aggregator {
	return &Aggregator{resellers: resellers, clients: clients}
}

// Snapshot computes the aggregate for the scope. period is optional. A
// failed read aborts the whole computation; a partial snapshot is never
// returned.
func (a *Aggregator) Snapshot(ctx context.Context, scope identity.Scope, period *Period) (*Snapshot, error) {
	ctx, span := traces.StartSpan(ctx, "finance.Snapshot")
	defer span.End()

	resellers, err := a.resellers.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	var f client.Filter
	if period != nil {
		from := time.Date(period.Year, period.Month, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)
		f.DueFrom, f.DueTo = &from, &to
	}
	clients, err := a.clients.List(ctx, scope, f)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		TotalClients:    len(clients),
		TotalResellers:  len(resellers),
		RevenueByServer: make(map[string]float64),
		CostByServer:    make(map[string]float64),
		ProfitByServer:  make(map[string]float64),
		AtivosByServer:  make(map[string]int),
	}

	// serverOrder keeps the detail list in first-seen order.
	var serverOrder []string
	for _, r := range resellers {
		detail := ResellerDetail{ID: r.ID, Name: r.Name}
		for _, row := range r.Servers {
			rev, cost := row.Revenue(), row.Cost()
			detail.Revenue += rev
			detail.Cost += cost

			if _, seen := s.RevenueByServer[row.Server]; !seen {
				serverOrder = append(serverOrder, row.Server)
			}
			s.RevenueByServer[row.Server] += rev
			s.CostByServer[row.Server] += cost
			s.ProfitByServer[row.Server] += rev - cost
			s.AtivosByServer[row.Server] += row.ActiveCount
		}
		detail.Profit = detail.Revenue - detail.Cost
		s.Revenue += detail.Revenue
		s.Cost += detail.Cost
		s.ByReseller = append(s.ByReseller, detail)
	}
	s.Profit = s.Revenue - s.Cost
	if s.Revenue != 0 {
		s.Margin = s.Profit / s.Revenue * 100
	}

	for _, name := range serverOrder {
		s.ServerDetails = append(s.ServerDetails, ServerDetail{
			Server:  name,
			Ativos:  s.AtivosByServer[name],
			Revenue: s.RevenueByServer[name],
			Cost:    s.CostByServer[name],
			Profit:  s.ProfitByServer[name],
		})
		if s.MostExpensive == "" || s.CostByServer[name] > s.CostByServer[s.MostExpensive] {
			s.MostExpensive = name
		}
		if s.MostProfitable == "" || s.ProfitByServer[name] > s.ProfitByServer[s.MostProfitable] {
			s.MostProfitable = name
		}
	}

	s.ResellerRanking = topByProfit(s.ByReseller, 10)

	for _, c := range clients {
		if c.Status != client.StatusActive || c.PlanValue == 0 || c.PlanType == 0 {
			continue
		}
		s.ProjectedMonthly += c.PlanValue / float64(c.PlanType) * 30
	}

	metrics.FinancialSnapshotsTotal.Inc()
	return s, nil
}

// topByProfit returns the n most profitable resellers, stable on ties.
func topByProfit(details []ResellerDetail, n int) []ResellerDetail {
	ranked := append([]ResellerDetail(nil), details...)
	// Stable insertion sort; the list is small and ties must keep
	// load order.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].Profit > ranked[j-1].Profit; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
