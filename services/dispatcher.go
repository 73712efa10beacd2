package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"
)

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "order_created_client"}}<html><body>
<h2>Ordine n°{{.Number}}/{{.Year}} ricevuto</h2>
<p>Gentile cliente, il suo ordine è stato registrato correttamente e verrà preso in carico a breve dal laboratorio.</p>
</body></html>{{end}}
{{define "order_created_operator"}}<html><body>
<h2>Nuovo ordine n°{{.Number}}/{{.Year}}</h2>
<p>È stato ricevuto un nuovo ordine da <strong>{{.BusinessName}}</strong>.</p>
</body></html>{{end}}
{{define "order_shipped_client"}}<html><body>
<h2>Ordine n°{{.Number}}/{{.Year}} spedito</h2>
<p>La lavorazione è stata completata e spedita da {{.OperatorFirstName}} {{.OperatorLastName}}.</p>
</body></html>{{end}}
`))

// OperatorDirectory lists the current operator e-mail addresses.
type OperatorDirectory interface {
	OperatorEmails(ctx context.Context) ([]string, error)
}

// Dispatcher turns notifications into e-mails and delivers them with retries.
type Dispatcher struct {
	mailer    Mailer
	operators OperatorDirectory
	logger    *zap.Logger
	attempts  int
	backoff   time.Duration
}

func NewDispatcher(mailer Mailer, operators OperatorDirectory, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:    mailer,
		operators: operators,
		logger:    logger.With(zap.String("component", "dispatcher")),
		attempts:  3,
		backoff:   2 * time.Second,
	}
}

// WithRetry overrides the delivery attempts and the delay between them.
func (d *Dispatcher) WithRetry(attempts int, backoff time.Duration) *Dispatcher {
	if attempts < 1 {
		attempts = 1
	}
	d.attempts = attempts
	d.backoff = backoff
	return d
}

func (d *Dispatcher) Handle(ctx context.Context, n Notification) error {
	mails, err := d.Compose(ctx, n)
	if err != nil {
		return err
	}

	var errs []error
	for _, m := range mails {
		if err := d.deliver(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compose renders the e-mails for n. The operator roster is read here, at send time.
func (d *Dispatcher) Compose(ctx context.Context, n Notification) ([]Mail, error) {
	switch n.Kind {
	case NotificationOrderCreated:
		body, err := render("order_created_client", n)
		if err != nil {
			return nil, err
		}
		mails := []Mail{{
			To:       n.ClientEmail,
			Subject:  fmt.Sprintf("Conferma creazione ordine n°%d/%d", n.Number, n.Year),
			HTMLBody: body,
		}}

		emails, err := d.operators.OperatorEmails(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load operator roster: %w", err)
		}
		opBody, err := render("order_created_operator", n)
		if err != nil {
			return nil, err
		}
		for _, email := range emails {
			mails = append(mails, Mail{
				To:       email,
				Subject:  fmt.Sprintf("Nuovo ordine n°%d/%d ricevuto", n.Number, n.Year),
				HTMLBody: opBody,
			})
		}
		return mails, nil

	case NotificationOrderShipped:
		body, err := render("order_shipped_client", n)
		if err != nil {
			return nil, err
		}
		return []Mail{{
			To:       n.ClientEmail,
			Subject:  fmt.Sprintf("Conferma termine ordine n°%d/%d", n.Number, n.Year),
			HTMLBody: body,
		}}, nil
	}
	return nil, fmt.Errorf("unknown notification kind %q", n.Kind)
}

func (d *Dispatcher) deliver(ctx context.Context, m Mail) error {
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err = d.mailer.Send(ctx, m); err == nil {
			return nil
		}
		d.logger.Warn("mail delivery attempt failed",
			zap.String("to", m.To),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == d.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.backoff):
		}
	}
	return fmt.Errorf("giving up on mail to %s: %w", m.To, err)
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
