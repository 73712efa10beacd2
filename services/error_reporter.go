package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrorReport describes an unexpected failure while serving a request.
type ErrorReport struct {
	RequestID  string
	Method     string
	Path       string
	Message    string
	Stack      string
	OccurredAt time.Time
}

// ErrorReporter forwards unexpected failures to a maintainer. It must not block the request.
type ErrorReporter interface {
	Report(report ErrorReport)
}

var reportTemplate = template.Must(template.New("report").Parse(`<html><body>
<h2>Unexpected error</h2>
<p><strong>{{.Method}} {{.Path}}</strong> at {{.OccurredAt.Format "2006-01-02 15:04:05"}} (request {{.RequestID}})</p>
<p>{{.Message}}</p>
{{if .Stack}}<pre>{{.Stack}}</pre>{{end}}
</body></html>`))

// MailErrorReporter e-mails each report to the maintainer address in the background.
type MailErrorReporter struct {
	mailer  Mailer
	to      string
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewMailErrorReporter(mailer Mailer, to string, logger *zap.Logger) *MailErrorReporter {
	return &MailErrorReporter{
		mailer:  mailer,
		to:      to,
		logger:  logger.With(zap.String("component", "error_reporter")),
		timeout: 30 * time.Second,
	}
}

func (r *MailErrorReporter) Report(report ErrorReport) {
	r.logger.Error("unexpected error",
		zap.String("request_id", report.RequestID),
		zap.String("method", report.Method),
		zap.String("path", report.Path),
		zap.String("error", report.Message),
	)
	if r.to == "" {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		body, err := renderReport(report)
		if err != nil {
			r.logger.Error("failed to render error report", zap.Error(err))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		err = r.mailer.Send(ctx, Mail{
			To:       r.to,
			Subject:  "Exception in lab-orders-api",
			HTMLBody: body,
		})
		if err != nil {
			r.logger.Error("failed to send error report", zap.Error(err))
		}
	}()
}

// Wait blocks until reports in flight have been sent.
func (r *MailErrorReporter) Wait() {
	r.wg.Wait()
}

func renderReport(report ErrorReport) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, report); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
