package metrics

import (
	"fmt"
	"math"
	"time"

	"together/internal/models"
)

type Insight struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Snapshot is one metrics_update payload.
type Snapshot struct {
	Timestamp             string                        `json:"timestamp,omitempty"`
	MessageCount          int                           `json:"message_count"`
	UserPercentage        *float64                      `json:"user_percentage,omitempty"`
	PartnerPercentage     *float64                      `json:"partner_percentage,omitempty"`
	AvgResponseTime       *float64                      `json:"avg_response_time,omitempty"`
	MessageFrequency      float64                       `json:"message_frequency"`
	FrequencyUnit         string                        `json:"frequency_unit,omitempty"`
	SentimentDistribution *models.SentimentDistribution `json:"sentiment_distribution,omitempty"`
	Insights              []Insight                     `json:"insights,omitempty"`
}

// Report is the body of the relationship-metrics endpoint.
type Report struct {
	Metrics  Snapshot  `json:"metrics"`
	Insights []Insight `json:"insights"`
}

const defaultFrequencyUnit = "per min"

// timestampLayouts covers RFC 3339 and the zone-less ISO form the analysis
// service emits.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Time parses Timestamp. Zone-less timestamps are UTC.
func (s Snapshot) Time() (time.Time, bool) {
	if s.Timestamp == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s.Timestamp, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Breakdown returns the rounded sender split, if the update carries one.
func (s Snapshot) Breakdown() (you, partner int, ok bool) {
	if s.UserPercentage == nil {
		return 0, 0, false
	}
	you = int(math.Round(*s.UserPercentage))
	if s.PartnerPercentage != nil {
		partner = int(math.Round(*s.PartnerPercentage))
	}
	return you, partner, true
}

// Sentiment returns the rounded bucket percentages. They need not sum to 100.
func (s Snapshot) Sentiment() (positive, neutral, negative int, ok bool) {
	d := s.SentimentDistribution
	if d == nil {
		return 0, 0, 0, false
	}
	return int(math.Round(d.Positive)), int(math.Round(d.Neutral)), int(math.Round(d.Negative)), true
}

// ResponseTimeText is "<n> minutes", or "N/A" without a measurement.
func (s Snapshot) ResponseTimeText() string {
	if s.AvgResponseTime == nil || *s.AvgResponseTime == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d minutes", int(math.Round(*s.AvgResponseTime)))
}

func (s Snapshot) FrequencyText() string {
	unit := s.FrequencyUnit
	if unit == "" {
		unit = defaultFrequencyUnit
	}
	return fmt.Sprintf("%.1f %s", s.MessageFrequency, unit)
}

// Snapshot merges the report's insights into its metrics, keeping at most
// limit of them. limit <= 0 keeps all.
func (r Report) Snapshot(limit int) Snapshot {
	snap := r.Metrics
	insights := r.Insights
	if len(insights) == 0 {
		insights = snap.Insights
	}
	if limit > 0 && len(insights) > limit {
		insights = insights[:limit]
	}
	snap.Insights = insights
	return snap
}
