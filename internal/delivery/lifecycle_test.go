package delivery

import (
	"strings"
	"testing"

	"github.com/angelmondragon/fulfillment-engine/internal/catalog"
	"github.com/angelmondragon/fulfillment-engine/internal/commission"
	"github.com/angelmondragon/fulfillment-engine/internal/orders"
	"github.com/angelmondragon/fulfillment-engine/internal/tracking"
	"github.com/angelmondragon/fulfillment-engine/pkg/storage"
	"github.com/angelmondragon/fulfillment-engine/pkg/storage/storagetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// newLifecycle wires the order lifecycle with this package as its courier.
func newLifecycle(t *testing.T, e *env) orders.Service {
	t.Helper()
	gw := catalog.NewGateway(e.db)
	payables, err := commission.NewService(commission.ServiceParams{
		Repo:   commission.NewRepository(e.db),
		Tx:     e.client,
		Ledger: e.ledger,
		Rates:  commission.NewRateResolver(decimal.NewFromInt(10)),
	})
	require.NoError(t, err)
	svc, err := orders.NewService(orders.Dependencies{
		Repo:     orders.NewRepository(e.db),
		Tx:       e.client,
		Tracking: tracking.NewRepository(e.db),
		Stock:    gw,
		Courier:  e.svc,
		Payables: payables,
		Vendors:  gw,
		Photos:   storagetest.NewMemory(),
		Notifier: e.notifier,
	})
	require.NoError(t, err)
	return svc
}

func testPhoto() *storage.Photo {
	return &storage.Photo{Filename: "door.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpeg")}
}
