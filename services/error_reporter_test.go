package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMailErrorReporter_SendsToMaintainer(t *testing.T) {
	mailer := NewRecordingMailer()
	r := NewMailErrorReporter(mailer, "dev@lab.example", zaptest.NewLogger(t))

	r.Report(ErrorReport{
		RequestID:  "req-1",
		Method:     "GET",
		Path:       "/api/v1/operator/orders",
		Message:    errors.New("pq: <connection reset>").Error(),
		OccurredAt: testNow,
	})
	r.Wait()

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "dev@lab.example", sent[0].To)
	assert.Equal(t, "Exception in lab-orders-api", sent[0].Subject)
	assert.Contains(t, sent[0].HTMLBody, "/api/v1/operator/orders")
	assert.Contains(t, sent[0].HTMLBody, "&lt;connection reset&gt;")
}

func TestMailErrorReporter_LogsOnlyWithoutRecipient(t *testing.T) {
	mailer := NewRecordingMailer()
	r := NewMailErrorReporter(mailer, "", zaptest.NewLogger(t))

	r.Report(ErrorReport{Message: "boom"})
	r.Wait()

	assert.Zero(t, mailer.Calls())
}
