package leads

import "strings"

// ScoreWeights holds the configurable point values the score deriver sums.
// The defaults mirror current marketing policy; treat them as tunable, not
// contractual.
type ScoreWeights struct {
	EmailOpened      int
	LinkClicked      int
	QualifyingSignal int
	CorporateDomain  int
	Cap              int
}

// DefaultScoreWeights returns the weights used when none are configured.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		EmailOpened:      10,
		LinkClicked:      20,
		QualifyingSignal: 5,
		CorporateDomain:  5,
		Cap:              100,
	}
}

// genericMailDomains are consumer mail providers; a corporate domain is a
// mild buying signal, a generic one is not.
var genericMailDomains = map[string]bool{
	"gmail.com":   true,
	"naver.com":   true,
	"daum.net":    true,
	"hotmail.com": true,
	"outlook.com": true,
	"kakao.com":   true,
	"icloud.com":  true,
	"yahoo.com":   true,
}

// HasQualifyingSignal reports whether the submission carried a non-trivial
// use-case description.
func HasQualifyingSignal(l *Lead) bool {
	return len(strings.TrimSpace(l.UseCase)) >= 10
}

// HasCorporateDomain reports whether the lead's email domain is not a
// consumer mail provider. Weighted separately from the use-case signal so
// the heuristic can be switched off with configuration alone.
func HasCorporateDomain(l *Lead) bool {
	at := strings.LastIndex(l.Email, "@")
	if at < 0 || at == len(l.Email)-1 {
		return false
	}
	domain := strings.ToLower(l.Email[at+1:])
	return !genericMailDomains[domain]
}

// ComputeScore derives the lead score from engagement flags and the
// submission signals. Pure and idempotent: identical inputs always produce
// the same score. A lead gets at most one signal bonus, the use-case one
// taking precedence. The result is clamped to [0, Cap].
func (w ScoreWeights) ComputeScore(flags EngagementFlags, qualifying, corporate bool) int {
	score := 0
	if flags.EmailOpened {
		score += w.EmailOpened
	}
	if flags.DownloadLinkClicked {
		score += w.LinkClicked
	}
	switch {
	case qualifying:
		score += w.QualifyingSignal
	case corporate:
		score += w.CorporateDomain
	}
	if score < 0 {
		score = 0
	}
	limit := w.Cap
	if limit <= 0 {
		limit = 100
	}
	if score > limit {
		score = limit
	}
	return score
}

// Rescore recomputes the lead's derived score and status in place and
// reports whether either changed.
func (w ScoreWeights) Rescore(l *Lead) bool {
	newScore := w.ComputeScore(l.Engagement, HasQualifyingSignal(l), HasCorporateDomain(l))
	newStatus := DeriveStatus(l.LeadStatus, l.Engagement)
	changed := newScore != l.LeadScore || newStatus != l.LeadStatus
	l.LeadScore = newScore
	l.LeadStatus = newStatus
	return changed
}
