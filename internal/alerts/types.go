package alerts

import "time"

// Type identifies the rule that raised an alert
type Type string

const (
	TypeNewSetups       Type = "NEW_SETUPS"
	TypeEntryZone       Type = "ENTRY_ZONE"
	TypeLiquidationRisk Type = "LIQUIDATION_RISK"
	TypeStopProximity   Type = "STOP_PROXIMITY"
	TypeTakeProfitNear  Type = "TP_PROXIMITY"
)

// Severity ranks how urgently an alert needs attention
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is a single raised alert. Created once, mutated only by
// acknowledgement, deleted only by capacity eviction.
type Alert struct {
	ID             string                 `json:"id"`
	CreatedAt      time.Time              `json:"created_at"`
	Type           Type                   `json:"type"`
	Severity       Severity               `json:"severity"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Symbol         string                 `json:"symbol,omitempty"`
	DedupeKey      string                 `json:"dedupe_key"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Sink forwards a created alert to an external notification channel.
// Delivery is best-effort relative to persistence.
type Sink interface {
	Send(alert *Alert) error
}
