// Package notify routes run status and failure alerts to configured sinks.
package notify

import (
	"context"
	"fmt"

	"github.com/gschex1112/songflow/internal/metrics"
	"github.com/gschex1112/songflow/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

// Dispatcher routes alerts to configured sinks. A failing sink never fails
// the run; the failure is counted and printed.
type Dispatcher struct {
	sinks []Sink
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(configs []types.AlertConfig) (*Dispatcher, error) {
	d := &Dispatcher{}
	for _, cfg := range configs {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// NewDispatcherFromSinks creates a dispatcher over explicit sinks.
func NewDispatcherFromSinks(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Dispatch sends an alert to all configured sinks.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, alert); err != nil {
			metrics.AlertsFailed.Add(1)
			fmt.Printf("[notify] error sending to %s: %v\n", sink.Name(), err)
		}
	}
}

func newSink(cfg types.AlertConfig) (Sink, error) {
	switch cfg.Type {
	case types.SinkConsole:
		return NewConsoleSink(), nil
	case types.SinkFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	case types.SinkSNS:
		if cfg.TopicARN == "" {
			return nil, fmt.Errorf("SNS topic ARN required")
		}
		return NewSNSSink(cfg.TopicARN)
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}
