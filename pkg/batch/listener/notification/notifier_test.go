package notification_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/listener/notification"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Deliver(ctx context.Context, report model.ImportStatusReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func testReport() model.ImportStatusReport {
	return model.ImportStatusReport{
		ListID:               "list-1",
		UserID:               "user-1",
		TotalRecipientsCount: 3,
		ImportedCount:        2,
		CorruptedEmailsCount: 1,
		CorruptedEmails:      []string{"broken"},
		ImportStatus:         model.ImportStatusSuccess,
	}
}

func TestReportNotifier_DeliversToEverySink(t *testing.T) {
	report := testReport()
	first, second := &mockSink{}, &mockSink{}
	first.On("Deliver", mock.Anything, report).Return(nil).Once()
	second.On("Deliver", mock.Anything, report).Return(nil).Once()

	err := notification.NewReportNotifier(first, second).Deliver(context.Background(), report)

	require.NoError(t, err)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestReportNotifier_KeepsDeliveringAfterFailure(t *testing.T) {
	report := testReport()
	failing, healthy := &mockSink{}, &mockSink{}
	cause := exception.NewReportDeliveryError("archiver", "upload failed", errors.New("503"))
	failing.On("Deliver", mock.Anything, report).Return(cause).Once()
	healthy.On("Deliver", mock.Anything, report).Return(nil).Once()

	err := notification.NewReportNotifier(failing, healthy).Deliver(context.Background(), report)

	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrReportDelivery)
	assert.False(t, exception.IsRetryable(err))
	healthy.AssertExpectations(t)
}

func TestReportNotifier_NoSinks(t *testing.T) {
	assert.NoError(t, notification.NewReportNotifier().Deliver(context.Background(), testReport()))
}
