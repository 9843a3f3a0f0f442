package leads

import "testing"

func TestComputeScore(t *testing.T) {
	w := DefaultScoreWeights()

	tests := []struct {
		name       string
		flags      EngagementFlags
		qualifying bool
		corporate  bool
		want       int
	}{
		{"nothing", EngagementFlags{}, false, false, 0},
		{"opened", EngagementFlags{EmailOpened: true}, false, false, 10},
		{"clicked", EngagementFlags{DownloadLinkClicked: true}, false, false, 20},
		{"opened and clicked", EngagementFlags{EmailOpened: true, DownloadLinkClicked: true}, false, false, 30},
		{"full house", EngagementFlags{EmailOpened: true, DownloadLinkClicked: true}, true, false, 35},
		{"qualifying only", EngagementFlags{}, true, false, 5},
		{"corporate only", EngagementFlags{EmailOpened: true}, false, true, 15},
		{"both signals score once", EngagementFlags{}, true, true, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.ComputeScore(tt.flags, tt.qualifying, tt.corporate); got != tt.want {
				t.Errorf("ComputeScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputeScoreCorporateWeightDisabled(t *testing.T) {
	w := DefaultScoreWeights()
	w.CorporateDomain = 0

	flags := EngagementFlags{EmailOpened: true}
	if got := w.ComputeScore(flags, false, true); got != 10 {
		t.Errorf("ComputeScore = %d, want 10 with domain weight off", got)
	}
	flags.DownloadLinkClicked = true
	if got := w.ComputeScore(flags, false, true); got != 30 {
		t.Errorf("ComputeScore = %d, want 30 with domain weight off", got)
	}
}

func TestComputeScoreClampsToCap(t *testing.T) {
	w := ScoreWeights{EmailOpened: 90, LinkClicked: 90, Cap: 100}
	flags := EngagementFlags{EmailOpened: true, DownloadLinkClicked: true}
	if got := w.ComputeScore(flags, false, false); got != 100 {
		t.Errorf("ComputeScore = %d, want capped 100", got)
	}
}

func TestComputeScoreIdempotent(t *testing.T) {
	w := DefaultScoreWeights()
	flags := EngagementFlags{EmailOpened: true, DownloadLinkClicked: true}
	first := w.ComputeScore(flags, true, true)
	for i := 0; i < 5; i++ {
		if got := w.ComputeScore(flags, true, true); got != first {
			t.Fatalf("ComputeScore not stable: %d then %d", first, got)
		}
	}
}

func TestHasQualifyingSignal(t *testing.T) {
	tests := []struct {
		name string
		lead Lead
		want bool
	}{
		{"long use case", Lead{UseCase: "Scope 3 CO2e accounting for road freight"}, true},
		{"short use case", Lead{UseCase: "testing"}, false},
		{"no use case", Lead{Email: "ops@hanjin-logis.co.kr"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasQualifyingSignal(&tt.lead); got != tt.want {
				t.Errorf("HasQualifyingSignal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasCorporateDomain(t *testing.T) {
	tests := []struct {
		name string
		lead Lead
		want bool
	}{
		{"corporate domain", Lead{Email: "ops@hanjin-logis.co.kr"}, true},
		{"gmail", Lead{Email: "someone@gmail.com"}, false},
		{"naver", Lead{Email: "someone@naver.com"}, false},
		{"malformed email", Lead{Email: "no-at-sign"}, false},
		{"trailing at", Lead{Email: "someone@"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCorporateDomain(&tt.lead); got != tt.want {
				t.Errorf("HasCorporateDomain = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRescore(t *testing.T) {
	w := DefaultScoreWeights()
	lead := &Lead{
		Email:      "ops@corporate-freight.com",
		LeadStatus: StatusNew,
		Engagement: EngagementFlags{EmailOpened: true},
	}

	if !w.Rescore(lead) {
		t.Fatal("first rescore should report a change")
	}
	if lead.LeadScore != 15 {
		t.Errorf("score = %d, want 15 (opened + corporate domain)", lead.LeadScore)
	}
	if lead.LeadStatus != StatusOpened {
		t.Errorf("status = %s, want OPENED", lead.LeadStatus)
	}

	if w.Rescore(lead) {
		t.Error("second rescore with same flags should be a no-op")
	}
}
