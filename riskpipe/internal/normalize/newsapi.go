package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// NewsAPI normalizes pre-clustered news coverage records: one record is
// a topic cluster for a day, not a single article. Magnitude tracks how
// much coverage the cluster drew, tone tracks aggregate sentiment.
type NewsAPI struct {
	Country string
}

type newsRecord struct {
	ClusterID    string   `json:"cluster_id"`
	PublishedAt  string   `json:"published_at"`
	Topic        string   `json:"topic"`
	Title        string   `json:"title"`
	Sentiment    *float64 `json:"sentiment"` // [-1, 1]
	ArticleCount int      `json:"article_count"`
	SourceCount  int      `json:"source_count"`
	Keywords     []string `json:"keywords"`
}

func (NewsAPI) Source() string { return store.SourceNewsAPI }

func (n NewsAPI) Normalize(payload []byte, ingestedAt time.Time) (*store.CanonicalEvent, error) {
	var rec newsRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("normalize: newsapi payload: %w", err)
	}
	if rec.ClusterID == "" {
		return nil, missingField(n.Source(), "", "cluster_id")
	}
	if rec.Sentiment == nil {
		return nil, missingField(n.Source(), rec.ClusterID, "sentiment")
	}
	ts, ok := parseDay(rec.PublishedAt, time.RFC3339, "2006-01-02")
	if !ok {
		return nil, missingField(n.Source(), rec.ClusterID, "published_at")
	}

	ev := newEvent(n.Source(), rec.ClusterID, n.Country, ts, ingestedAt, payload)
	ev.Category = newsCategory(rec.Topic)
	ev.Subcategory = rec.Topic
	ev.EventType = "NEWS_CLUSTER"

	ev.MagnitudeRaw = float64(rec.ArticleCount)
	ev.MagnitudeUnit = "articles"
	ev.MagnitudeNorm = SaturatingRatio(float64(rec.ArticleCount), 20)

	s := *rec.Sentiment
	ev.ToneRaw = s
	ev.ToneNorm = LinearRescale(-s, -1, 1)
	switch {
	case s < -0.1:
		ev.Direction = store.DirectionNegative
	case s > 0.1:
		ev.Direction = store.DirectionPositive
	default:
		ev.Direction = store.DirectionNeutral
	}

	ev.NumSources = rec.SourceCount
	ev.Sectors = rec.Keywords
	return finish(ev), nil
}
