package audit

import (
	"context"
	"time"

	"MarketGate/internal/domain/repository"
	pkgkafka "MarketGate/pkg/kafka"
	applogger "MarketGate/pkg/logger"
)

// KafkaSink publishes audit events to Kafka. Security-relevant events are
// routed to a dedicated topic so downstream alerting can consume them
// separately. Emit never blocks the request path: events are buffered and a
// full buffer drops the event (and counts the drop) rather than stalling.
type KafkaSink struct {
	producer      *pkgkafka.Producer
	topic         string
	securityTopic string
	buf           chan repository.AuditEvent
	l             *applogger.Logger
}

// NewKafkaSink creates a Kafka audit publisher and starts its writer loop.
func NewKafkaSink(ctx context.Context, producer *pkgkafka.Producer, topic, securityTopic string, l *applogger.Logger) *KafkaSink {
	s := &KafkaSink{
		producer:      producer,
		topic:         topic,
		securityTopic: securityTopic,
		buf:           make(chan repository.AuditEvent, 1024),
		l:             l,
	}
	go s.run(ctx)
	return s
}

func (s *KafkaSink) Emit(_ context.Context, ev repository.AuditEvent) {
	select {
	case s.buf <- ev:
	default:
		if s.l != nil {
			s.l.Warn("audit kafka buffer full, event dropped",
				applogger.String("event_type", ev.Type))
		}
	}
}

func (s *KafkaSink) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.buf:
			topic := s.topic
			if ev.Security && s.securityTopic != "" {
				topic = s.securityTopic
			}
			pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := s.producer.Publish(pubCtx, topic, []byte(ev.Symbol), ev)
			cancel()
			if err != nil && s.l != nil {
				s.l.Warn("audit kafka publish failed", applogger.Error(err))
			}
		}
	}
}
