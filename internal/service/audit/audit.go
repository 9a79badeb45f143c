package audit

import (
	"context"
	"time"

	"MarketGate/internal/domain/repository"
	applogger "MarketGate/pkg/logger"
)

// LogSink writes audit events to the structured logger. Security-relevant
// events go out at warn level so log routing can separate them.
type LogSink struct {
	l *applogger.Logger
}

// NewLogSink creates a logger-backed audit sink.
func NewLogSink(l *applogger.Logger) *LogSink {
	return &LogSink{l: l}
}

func (s *LogSink) Emit(_ context.Context, ev repository.AuditEvent) {
	if s.l == nil {
		return
	}
	fields := []applogger.Field{
		applogger.String("event_type", ev.Type),
		applogger.String("ticker", ev.Symbol),
		applogger.String("session_id", ev.SessionID),
		applogger.String("correlation_id", ev.CorrelationID),
	}
	if ev.ToolName != "" {
		fields = append(fields, applogger.String("tool_name", ev.ToolName))
	}
	if ev.Decision != "" {
		fields = append(fields, applogger.String("compliance_decision", ev.Decision))
	}
	if ev.Reason != "" {
		fields = append(fields, applogger.String("reason", ev.Reason))
	}
	for k, v := range ev.Fields {
		fields = append(fields, applogger.Any(k, v))
	}
	if ev.Security {
		fields = append(fields, applogger.Bool("security_alert", true))
		s.l.Warn("audit", fields...)
		return
	}
	s.l.Info("audit", fields...)
}

// Multi fans one event out to several sinks in order.
type Multi []repository.AuditSink

func (m Multi) Emit(ctx context.Context, ev repository.AuditEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}

// NewMulti builds a fanout sink, skipping nil members.
func NewMulti(sinks ...repository.AuditSink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
