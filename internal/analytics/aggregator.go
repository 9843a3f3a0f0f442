package analytics

import (
	"fmt"
	"time"

	"github.com/glec-io/lead-pipeline/internal/leads"
)

// Granularity selects the time-series bucket width.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity maps the query value, defaulting to day.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", GranularityDay:
		return GranularityDay, nil
	case GranularityWeek:
		return GranularityWeek, nil
	case GranularityMonth:
		return GranularityMonth, nil
	}
	return "", fmt.Errorf("analytics: unknown granularity %q", s)
}

// LeadFacts is the per-lead slice of columns the aggregator consumes.
type LeadFacts struct {
	CreatedAt   time.Time
	Source      leads.Source
	Status      leads.Status
	Score       int
	EmailSent   bool
	EmailOpened bool
	LinkClicked bool
}

// TimeBucket is one point of the creation time series, with the per-source
// breakdown of that bucket's count.
type TimeBucket struct {
	Period  string               `json:"period"`
	Count   int                  `json:"count"`
	Sources map[leads.Source]int `json:"sources"`
}

// ScoreBucket is one bar of the lead-score histogram.
type ScoreBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// FunnelStage reports how many leads reached a funnel status, with the
// percentage relative to the first stage.
type FunnelStage struct {
	Stage      leads.Status `json:"stage"`
	Count      int          `json:"count"`
	Percentage float64      `json:"percentage"`
}

// Engagement summarizes email interaction counts and rates.
type Engagement struct {
	Sent      int     `json:"sent"`
	Opened    int     `json:"opened"`
	Clicked   int     `json:"clicked"`
	OpenRate  float64 `json:"open_rate"`
	ClickRate float64 `json:"click_rate"`
}

// Report is the full analytics payload.
type Report struct {
	TotalLeads         int                  `json:"total_leads"`
	TimeSeries         []TimeBucket         `json:"time_series"`
	ScoreHistogram     []ScoreBucket        `json:"score_histogram"`
	SourceDistribution map[leads.Source]int `json:"source_distribution"`
	StatusDistribution map[leads.Status]int `json:"status_distribution"`
	Funnel             []FunnelStage        `json:"funnel"`
	Engagement         Engagement           `json:"engagement"`
}

var scoreRanges = []string{"0-20", "21-40", "41-60", "61-80", "81-100"}

func scoreBucketIndex(score int) int {
	switch {
	case score <= 20:
		return 0
	case score <= 40:
		return 1
	case score <= 60:
		return 2
	case score <= 80:
		return 3
	default:
		return 4
	}
}

func bucketKey(t time.Time, g Granularity) string {
	t = t.UTC()
	switch g {
	case GranularityWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GranularityMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// startOfBucket truncates t to the opening instant of its bucket.
func startOfBucket(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	switch g {
	case GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		monday := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -monday)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// bucketRange enumerates the keys of every bucket covering [from, to),
// including buckets no lead falls into.
func bucketRange(from, to time.Time, g Granularity) []string {
	var keys []string
	for cursor := startOfBucket(from, g); cursor.Before(to.UTC()); {
		keys = append(keys, bucketKey(cursor, g))
		switch g {
		case GranularityWeek:
			cursor = cursor.AddDate(0, 0, 7)
		case GranularityMonth:
			cursor = cursor.AddDate(0, 1, 0)
		default:
			cursor = cursor.AddDate(0, 0, 1)
		}
	}
	return keys
}

// Aggregate computes the report from raw lead rows. Pure; bucketing and
// percentages are derived entirely from the inputs. The time series covers
// every bucket in [from, to), zero-filled where no lead was created.
func Aggregate(facts []LeadFacts, g Granularity, from, to time.Time) *Report {
	report := &Report{
		TotalLeads:         len(facts),
		TimeSeries:         []TimeBucket{},
		SourceDistribution: map[leads.Source]int{},
		StatusDistribution: map[leads.Status]int{},
	}

	order := bucketRange(from, to, g)
	series := make(map[string]*TimeBucket, len(order))
	for _, key := range order {
		series[key] = &TimeBucket{Period: key, Sources: map[leads.Source]int{}}
	}
	scores := make([]int, len(scoreRanges))
	reached := map[leads.Status]int{}

	for _, f := range facts {
		if bucket, ok := series[bucketKey(f.CreatedAt, g)]; ok {
			bucket.Count++
			bucket.Sources[f.Source]++
		}

		scores[scoreBucketIndex(f.Score)]++
		report.SourceDistribution[f.Source]++
		report.StatusDistribution[f.Status]++

		// Every lead passed through NEW; a lead at rank N has reached
		// every stage up to N. CONTACTED/LOST leads count for NEW only.
		rank, ok := leads.FunnelRank(f.Status)
		if !ok {
			rank = 0
		}
		for i, stage := range leads.FunnelStages() {
			if i <= rank {
				reached[stage]++
			}
		}

		if f.EmailSent {
			report.Engagement.Sent++
		}
		if f.EmailOpened {
			report.Engagement.Opened++
		}
		if f.LinkClicked {
			report.Engagement.Clicked++
		}
	}

	for _, key := range order {
		report.TimeSeries = append(report.TimeSeries, *series[key])
	}
	for i, r := range scoreRanges {
		report.ScoreHistogram = append(report.ScoreHistogram, ScoreBucket{Range: r, Count: scores[i]})
	}

	first := 0
	for i, stage := range leads.FunnelStages() {
		count := reached[stage]
		if i == 0 {
			first = count
		}
		pct := 0.0
		if first > 0 {
			pct = round1(float64(count) / float64(first) * 100)
		}
		report.Funnel = append(report.Funnel, FunnelStage{Stage: stage, Count: count, Percentage: pct})
	}

	if report.Engagement.Sent > 0 {
		report.Engagement.OpenRate = round1(float64(report.Engagement.Opened) / float64(report.Engagement.Sent) * 100)
		report.Engagement.ClickRate = round1(float64(report.Engagement.Clicked) / float64(report.Engagement.Sent) * 100)
	}
	return report
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
