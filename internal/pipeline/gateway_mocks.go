package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collections-etl-go/internal/types"
)

// MockSourceGateway is a mock implementation of gateway.SourceGateway
type MockSourceGateway struct {
	mock.Mock
}

func (m *MockSourceGateway) ListPeriods(ctx context.Context, month time.Time, status types.PeriodStatus) ([]types.Period, error) {
	args := m.Called(ctx, month, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Period), args.Error(1)
}

func (m *MockSourceGateway) FetchAssignments(ctx context.Context, period types.Period) ([]types.AssignmentRecord, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.AssignmentRecord), args.Error(1)
}

func (m *MockSourceGateway) FetchInteractions(ctx context.Context, customerIDs []int64, windowStart, windowEnd time.Time) ([]types.InteractionEvent, []types.InteractionEvent, error) {
	args := m.Called(ctx, customerIDs, windowStart, windowEnd)
	var bot, human []types.InteractionEvent
	if args.Get(0) != nil {
		bot = args.Get(0).([]types.InteractionEvent)
	}
	if args.Get(1) != nil {
		human = args.Get(1).([]types.InteractionEvent)
	}
	return bot, human, args.Error(2)
}

func (m *MockSourceGateway) FetchDebtContext(ctx context.Context, snapshotDates []time.Time) ([]types.DebtSnapshot, error) {
	args := m.Called(ctx, snapshotDates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.DebtSnapshot), args.Error(1)
}

func (m *MockSourceGateway) FetchPaymentContext(ctx context.Context, documentIDs []string) ([]types.PaymentRecord, error) {
	args := m.Called(ctx, documentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.PaymentRecord), args.Error(1)
}

// MockSinkGateway is a mock implementation of gateway.SinkGateway
type MockSinkGateway struct {
	mock.Mock
}

func (m *MockSinkGateway) ClearPartition(ctx context.Context, table string, month time.Time) error {
	args := m.Called(ctx, table, month)
	return args.Error(0)
}

func (m *MockSinkGateway) Append(ctx context.Context, table string, rows any, partitionField string, clusterFields []string) (int, error) {
	args := m.Called(ctx, table, rows, partitionField, clusterFields)
	return args.Int(0), args.Error(1)
}
