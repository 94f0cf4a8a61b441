package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDispatchCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	trigger := "Loan Approved - API"

	metrics.IncEventReceived("LOAN_APPROVED")
	metrics.IncReportFailure(trigger)
	metrics.IncDelivery(trigger, "DELIVERED")
	metrics.IncAttempt(trigger, "failure")
	metrics.IncAttempt(trigger, "success")
	metrics.ObserveAttemptDuration(trigger, 120*time.Millisecond)
	metrics.IncRetryScheduled(trigger)
	metrics.IncQueueRejected(trigger)
	metrics.IncDispatchInFlight()
	metrics.DecDispatchInFlight()
	metrics.IncSweepEvaluation("Birthday Event - API", "dispatched")

	if got := testutil.ToFloat64(metrics.eventsReceivedTotal.WithLabelValues("loan_approved")); got != 1 {
		t.Fatalf("events_received_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.reportFailuresTotal.WithLabelValues("loan_approved_api")); got != 1 {
		t.Fatalf("report_resolution_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("loan_approved_api", "delivered")); got != 1 {
		t.Fatalf("deliveries_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.attemptsTotal.WithLabelValues("loan_approved_api", "failure")); got != 1 {
		t.Fatalf("delivery_attempts_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.retryScheduledTotal.WithLabelValues("loan_approved_api")); got != 1 {
		t.Fatalf("retry_scheduled_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.queueRejectedTotal.WithLabelValues("loan_approved_api")); got != 1 {
		t.Fatalf("dispatch_queue_rejected_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.dispatchInflight); got != 0 {
		t.Fatalf("dispatch_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.sweepEvaluationsTotal.WithLabelValues("birthday_event_api", "dispatched")); got != 1 {
		t.Fatalf("sweep_evaluations_total = %v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncDelivery("x", "y")
	metrics.IncDispatchInFlight()
	metrics.ObserveAttemptDuration("x", time.Second)
	if metrics.Handler() == nil {
		t.Fatal("Handler() should fall back to the default handler")
	}
}

func TestNormalizeLabel(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"":                                 "unknown",
		"SMS":                              "sms",
		"Savings Account Withdrawal - API": "savings_account_withdrawal_api",
		"LOAN_REPAYMENT_MADE":              "loan_repayment_made",
	}

	for input, want := range testCases {
		if got := normalizeLabel(input); got != want {
			t.Fatalf("normalizeLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
