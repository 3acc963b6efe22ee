package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Sentiment buckets produced by the analysis service.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// AnalyzedMessage holds the derived analysis of exactly one Message.
type AnalyzedMessage struct {
	ID         bson.ObjectID      `bson:"_id,omitempty" json:"id"`
	MessageID  string             `bson:"message_id" json:"message_id"`
	Sentiment  string             `bson:"sentiment" json:"sentiment"`
	Scores     map[string]float64 `bson:"scores,omitempty" json:"scores,omitempty"`
	AnalyzedAt time.Time          `bson:"analyzed_at" json:"analyzed_at"`
}

type SentimentDistribution struct {
	Positive float64 `bson:"positive" json:"positive"`
	Neutral  float64 `bson:"neutral" json:"neutral"`
	Negative float64 `bson:"negative" json:"negative"`
}

// RelationshipMetric is an aggregate over a couple's messages in a time window.
type RelationshipMetric struct {
	ID                    bson.ObjectID         `bson:"_id,omitempty" json:"id"`
	UserID                string                `bson:"user_id" json:"user_id"`
	PartnerID             string                `bson:"partner_id" json:"partner_id"`
	MessageCount          int                   `bson:"message_count" json:"message_count"`
	AvgResponseTime       *float64              `bson:"avg_response_time" json:"avg_response_time"`
	MessageFrequency      float64               `bson:"message_frequency" json:"message_frequency"`
	SentimentDistribution SentimentDistribution `bson:"sentiment_distribution" json:"sentiment_distribution"`
	WindowStart           time.Time             `bson:"window_start" json:"window_start"`
	WindowEnd             time.Time             `bson:"window_end" json:"window_end"`
	CreatedAt             time.Time             `bson:"created_at" json:"created_at"`
}

// DailyQuestion is unique per calendar date (YYYY-MM-DD).
type DailyQuestion struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Date      string        `bson:"date" json:"date"`
	Question  string        `bson:"question" json:"question"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
}
