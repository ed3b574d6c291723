// Package dispatcher turns flagged flows into alerts, hands them to a sink
// and applies the optional mitigation policy.
package dispatcher

import (
	"NetSentinel/internal/metrics"
	"NetSentinel/internal/model"
	"NetSentinel/internal/pkg/clock"
	"context"
	"fmt"
	"log"
	"time"
)

// DispatchReport summarizes one dispatch call.
type DispatchReport struct {
	Considered         int
	Flagged            int
	Delivered          int
	Failed             int
	MitigationAttempts int
	MitigationFailures int
}

func (r DispatchReport) String() string {
	return fmt.Sprintf("flagged=%d/%d delivered=%d failed=%d mitigations=%d (failed %d)",
		r.Flagged, r.Considered, r.Delivered, r.Failed, r.MitigationAttempts, r.MitigationFailures)
}

// Options configures a Dispatcher. Zero values mean no timeout and no throttle.
type Options struct {
	Timeout    time.Duration
	Throttle   time.Duration
	Clock      clock.Clock
	Mitigation *MitigationGate
	Metrics    *metrics.Agent
}

// Dispatcher delivers one alert per flagged flow, one attempt each.
type Dispatcher struct {
	opts Options
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Dispatcher{opts: opts}
}

// Dispatch delivers alerts for the suspicious flows in scored. A failed
// delivery is logged and never prevents later alerts from being attempted.
// Mitigation runs independently of the delivery outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, scored []model.ScoredFlow, sink model.AlertSink) DispatchReport {
	report := DispatchReport{Considered: len(scored)}

	for _, sf := range scored {
		if sf.Class != model.Suspicious {
			continue
		}
		if report.Flagged > 0 && d.opts.Throttle > 0 {
			if err := d.opts.Clock.Sleep(ctx, d.opts.Throttle); err != nil {
				log.Printf("Dispatcher: stopping early: %v", err)
				break
			}
		}
		report.Flagged++

		alert := BuildAlert(sf, d.opts.Clock.Now())
		if err := d.deliver(ctx, sf, alert, sink); err != nil {
			report.Failed++
			d.opts.Metrics.Delivery("failed")
			log.Printf("Dispatcher: %v", err)
		} else {
			report.Delivered++
			d.opts.Metrics.Delivery("delivered")
			log.Printf("Dispatcher: alert sent for %s:%d -> %s:%d (score=%.3f)",
				alert.Src, alert.Sport, alert.Dst, alert.Dport, sf.AttackScore)
		}

		if d.opts.Mitigation == nil {
			continue
		}
		attempted, err := d.opts.Mitigation.Apply(ctx, sf)
		if !attempted {
			continue
		}
		report.MitigationAttempts++
		if err != nil {
			report.MitigationFailures++
			d.opts.Metrics.Mitigation("failed")
			log.Printf("Dispatcher: %v", err)
		} else {
			d.opts.Metrics.Mitigation("blocked")
			log.Printf("Dispatcher: blocked source %s", sf.Record.Key.SrcIP)
		}
	}
	return report
}

func (d *Dispatcher) deliver(ctx context.Context, sf model.ScoredFlow, alert model.Alert, sink model.AlertSink) error {
	callCtx := ctx
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}
	if err := sink.Ingest(callCtx, alert); err != nil {
		var key model.FlowKey
		if sf.Record != nil {
			key = sf.Record.Key
		}
		return &model.DeliveryError{Flow: key, Err: err}
	}
	return nil
}
