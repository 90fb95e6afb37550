// Package notify renders grade messages and delivers them to the configured channels.
package notify

import (
	"context"
	"fmt"

	"gradewatch/internal/components/assert"
	"gradewatch/internal/components/retry"
	"gradewatch/internal/components/telemetry"
	"gradewatch/internal/course"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	report_dispatch_deliver = "dispatch.deliver"
	report_dispatch_alert   = "dispatch.alert"
)

var tracer = otel.Tracer("gradewatch.internal.notify")

// Dispatcher fans one message out to every channel. A message counts as
// delivered once any channel accepts it.
type Dispatcher struct {
	channels []Channel
	policy   retry.Policy
	tel      telemetry.API
}

func NewDispatcher(policy retry.Policy, tel telemetry.API, channels ...Channel) *Dispatcher {
	assert.NotNil(tel)
	if len(channels) == 0 {
		panic("dispatcher needs at least one channel")
	}
	return &Dispatcher{
		channels: channels,
		policy:   policy,
		tel:      telemetry.NewScopedAPI("notify", tel),
	}
}

func (d *Dispatcher) send(ctx context.Context, id string, text string) bool {
	delivered := false
	for _, ch := range d.channels {
		err := d.policy.Do(ctx, func(ctx context.Context) error {
			return ch.Send(ctx, text)
		}, func(attempt int, err error) {
			d.tel.ReportWarning(id, ch.Name(), fmt.Errorf("attempt %d: %w", attempt, err))
		})
		if err != nil {
			d.tel.ReportBroken(id, ch.Name(), err)
			continue
		}
		delivered = true
	}
	return delivered
}

// Deliver announces a published grade. It never fails loudly: false means
// no channel took the message and the course should stay pending.
func (d *Dispatcher) Deliver(ctx context.Context, event course.PublicationEvent) bool {
	ctx, span := tracer.Start(ctx, "Deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("course_id", event.Key.CourseID),
		attribute.String("trimester", event.Key.Trimester),
	)

	text := Render(event.Record)
	ok := d.send(ctx, report_dispatch_deliver, text)
	span.SetAttributes(attribute.Bool("delivered", ok))
	if ok {
		d.tel.ReportDebug("delivered", "course", event.Key.String(), "grade", event.Record.Grade)
	}
	return ok
}

// Alert tells the operator that something needs attention.
func (d *Dispatcher) Alert(ctx context.Context, text string) bool {
	ctx, span := tracer.Start(ctx, "Alert")
	defer span.End()
	return d.send(ctx, report_dispatch_alert, RenderAlert(text))
}
