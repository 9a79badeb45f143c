package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	applogger "MarketGate/pkg/logger"
)

// Decision is the wire form of an approval published by compliance tooling.
type Decision struct {
	Ticker     string `json:"ticker"`
	Approved   bool   `json:"approved"`
	ApproverID string `json:"approver_id"`
}

// KafkaHandler consumes approval decisions from a Kafka topic and resolves
// the matching holds. It implements pkg/kafka.MessageHandler.
type KafkaHandler struct {
	topic    string
	registry *Registry
	l        *applogger.Logger
}

// NewKafkaHandler creates a handler bound to topic.
func NewKafkaHandler(topic string, registry *Registry, l *applogger.Logger) *KafkaHandler {
	return &KafkaHandler{topic: topic, registry: registry, l: l}
}

func (h *KafkaHandler) Topic() string { return h.topic }

// Handle decodes a decision and delivers it. A decision with no waiting
// workflow is not an error; the hold may have timed out already.
func (h *KafkaHandler) Handle(_ context.Context, data []byte) error {
	var d Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("decode approval decision: %w", err)
	}
	if d.Ticker == "" || d.ApproverID == "" {
		return fmt.Errorf("approval decision missing ticker or approver_id")
	}

	delivered := h.registry.Resolve(strings.ToUpper(d.Ticker), d.Approved, d.ApproverID)
	if h.l != nil {
		h.l.Info("approval decision consumed",
			applogger.String("ticker", d.Ticker),
			applogger.Bool("approved", d.Approved),
			applogger.String("approver_id", d.ApproverID),
			applogger.Bool("delivered", delivered),
		)
	}
	return nil
}
