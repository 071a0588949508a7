package finance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestororion/orion/internal/client"
	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/reseller"
)

var scope = identity.Scope{TenantID: "ten_1", OwnerIDs: []string{"usr_a"}}

var seedSeq int

// seedReseller gives each record a strictly older timestamp than the
// previous one, so newest-first listing preserves insertion order.
func seedReseller(t *testing.T, store reseller.Store, id, name string, rows ...reseller.ServerRow) {
	t.Helper()
	seedSeq++
	require.NoError(t, store.Create(context.Background(), &reseller.Reseller{
		ID: id, TenantID: "ten_1", OwnerID: "usr_a", Name: name,
		Type: reseller.TypePrepaid, Status: reseller.StatusActive,
		PaymentStatus: reseller.PaymentPending, Servers: rows,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Duration(seedSeq) * time.Minute),
	}))
}

func seedClient(t *testing.T, store client.Store, id string, status string, planType int, planValue float64, due time.Time) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &client.Client{
		ID: id, TenantID: "ten_1", OwnerID: "usr_a", Name: id,
		PlanType: planType, PlanValue: planValue,
		StartDate: due.AddDate(0, 0, -planType), DueDate: due,
		Status: status, CreatedAt: time.Now(),
	}))
}

func TestSnapshotServerBuckets(t *testing.T) {
	resellers := reseller.NewMemoryStore()
	clients := client.NewMemoryStore()

	// SRV1: 100 actives at 5/3 -> revenue 500, cost 300, profit 200.
	seedReseller(t, resellers, "rsl_1", "Alpha",
		reseller.ServerRow{Server: "SRV1", ActiveCount: 100, PricePerActive: 5, CostPerActive: 3})

	agg := NewAggregator(resellers, clients)
	s, err := agg.Snapshot(context.Background(), scope, nil)
	require.NoError(t, err)

	assert.Equal(t, 500.0, s.Revenue)
	assert.Equal(t, 300.0, s.Cost)
	assert.Equal(t, 200.0, s.Profit)
	assert.Equal(t, 500.0, s.RevenueByServer["SRV1"])
	assert.Equal(t, 300.0, s.CostByServer["SRV1"])
	assert.Equal(t, 200.0, s.ProfitByServer["SRV1"])
	assert.Equal(t, 100, s.AtivosByServer["SRV1"])
	assert.InDelta(t, 40.0, s.Margin, 1e-9)
}

func TestSnapshotSharedServerAcrossResellers(t *testing.T) {
	resellers := reseller.NewMemoryStore()
	clients := client.NewMemoryStore()

	seedReseller(t, resellers, "rsl_1", "Alpha",
		reseller.ServerRow{Server: "SRV1", ActiveCount: 20, PricePerActive: 5, CostPerActive: 2})
	seedReseller(t, resellers, "rsl_2", "Beta",
		reseller.ServerRow{Server: "SRV1", ActiveCount: 10, PricePerActive: 5, CostPerActive: 2})

	s, err := NewAggregator(resellers, clients).Snapshot(context.Background(), scope, nil)
	require.NoError(t, err)

	// 30 actives at 5 across two resellers share one bucket.
	assert.Equal(t, 150.0, s.RevenueByServer["SRV1"])
	assert.Equal(t, 30, s.AtivosByServer["SRV1"])
	assert.Len(t, s.ServerDetails, 1)
	assert.Equal(t, 2, s.TotalResellers)
}

func TestSnapshotMarginZeroWithoutRevenue(t *testing.T) {
	s, err := NewAggregator(reseller.NewMemoryStore(), client.NewMemoryStore()).
		Snapshot(context.Background(), scope, nil)
	require.NoError(t, err)
	assert.Zero(t, s.Margin)
	assert.Zero(t, s.Revenue)
}

func TestSnapshotMarginPercentage(t *testing.T) {
	resellers := reseller.NewMemoryStore()
	seedReseller(t, resellers, "rsl_1", "Alpha",
		reseller.ServerRow{Server: "SRV1", ActiveCount: 10, PricePerActive: 10, CostPerActive: 4})

	s, err := NewAggregator(resellers, client.NewMemoryStore()).
		Snapshot(context.Background(), scope, nil)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, s.Margin, 1e-9)
}

func TestRankingTopTenStable(t *testing.T) {
	resellers := reseller.NewMemoryStore()
	clients := client.NewMemoryStore()

	// Twelve resellers, profit descending by construction; two share a
	// profit value to exercise the tie rule.
	for i := 0; i < 12; i++ {
		profit := 120 - i*10
		if i == 5 {
			profit = 120 - 4*10 // tie with i==4
		}
		seedReseller(t, resellers, fmt.Sprintf("rsl_%02d", i), fmt.Sprintf("R%02d", i),
			reseller.ServerRow{Server: "SRV1", ActiveCount: 1, PricePerActive: float64(profit), CostPerActive: 0})
	}

	s, err := NewAggregator(resellers, clients).Snapshot(context.Background(), scope, nil)
	require.NoError(t, err)
	require.Len(t, s.ResellerRanking, 10)
	assert.Equal(t, "R00", s.ResellerRanking[0].Name)

	// The tie keeps load order: R04 before R05.
	i4, i5 := -1, -1
	for i, d := range s.ResellerRanking {
		switch d.Name {
		case "R04":
			i4 = i
		case "R05":
			i5 = i
		}
	}
	require.NotEqual(t, -1, i4)
	require.NotEqual(t, -1, i5)
	assert.Less(t, i4, i5)
}

func TestMostExpensiveAndProfitable(t *testing.T) {
	resellers := reseller.NewMemoryStore()
	seedReseller(t, resellers, "rsl_1", "Alpha",
		reseller.ServerRow{Server: "CHEAP", ActiveCount: 10, PricePerActive: 10, CostPerActive: 1},
		reseller.ServerRow{Server: "COSTLY", ActiveCount: 10, PricePerActive: 5, CostPerActive: 4})

	s, err := NewAggregator(resellers, client.NewMemoryStore()).
		Snapshot(context.Background(), scope, nil)
	require.NoError(t, err)
	assert.Equal(t, "COSTLY", s.MostExpensive)
	assert.Equal(t, "CHEAP", s.MostProfitable)
}

func TestProjectedMonthlyRunRate(t *testing.T) {
	clients := client.NewMemoryStore()
	due := time.Now().AddDate(0, 0, 15)

	// 90-day plan at 90.0 -> 30.0/month; 30-day plan at 35.0 -> 35.0/month.
	seedClient(t, clients, "cli_1", client.StatusActive, 90, 90, due)
	seedClient(t, clients, "cli_2", client.StatusActive, 30, 35, due)
	// Inactive and zero-value clients are excluded.
	seedClient(t, clients, "cli_3", client.StatusInactive, 30, 35, due)
	seedClient(t, clients, "cli_4", client.StatusActive, 30, 0, due)

	s, err := NewAggregator(reseller.NewMemoryStore(), clients).
		Snapshot(context.Background(), scope, nil)
	require.NoError(t, err)
	assert.InDelta(t, 65.0, s.ProjectedMonthly, 1e-9)
	assert.Equal(t, 4, s.TotalClients)
}

func TestPeriodFilter(t *testing.T) {
	clients := client.NewMemoryStore()
	seedClient(t, clients, "cli_mar", client.StatusActive, 30, 35,
		time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	seedClient(t, clients, "cli_apr", client.StatusActive, 30, 35,
		time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC))

	agg := NewAggregator(reseller.NewMemoryStore(), clients)
	s, err := agg.Snapshot(context.Background(), scope, &Period{Month: time.March, Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalClients)
}

type failingResellerStore struct {
	reseller.Store
}

func (failingResellerStore) List(context.Context, identity.Scope) ([]*reseller.Reseller, error) {
	return nil, errors.New("db down")
}

func TestNoPartialSnapshotOnFailure(t *testing.T) {
	agg := NewAggregator(failingResellerStore{}, client.NewMemoryStore())
	s, err := agg.Snapshot(context.Background(), scope, nil)
	assert.Error(t, err)
	assert.Nil(t, s)
}
