package leads

import "testing"

func TestDeriveStatus(t *testing.T) {
	opened := EngagementFlags{EmailSent: true, EmailOpened: true}
	clicked := EngagementFlags{EmailSent: true, EmailOpened: true, DownloadLinkClicked: true}

	tests := []struct {
		name    string
		current Status
		flags   EngagementFlags
		want    Status
	}{
		{"no engagement stays new", StatusNew, EngagementFlags{}, StatusNew},
		{"sent alone stays new", StatusNew, EngagementFlags{EmailSent: true}, StatusNew},
		{"open advances new", StatusNew, opened, StatusOpened},
		{"click advances new", StatusNew, clicked, StatusDownloaded},
		{"click advances opened", StatusOpened, clicked, StatusDownloaded},
		{"open does not regress downloaded", StatusDownloaded, opened, StatusDownloaded},
		{"click does not regress qualified", StatusQualified, clicked, StatusQualified},
		{"click does not regress converted", StatusConverted, clicked, StatusConverted},
		{"contacted is sticky", StatusContacted, clicked, StatusContacted},
		{"lost is sticky", StatusLost, clicked, StatusLost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.current, tt.flags); got != tt.want {
				t.Errorf("DeriveStatus(%s) = %s, want %s", tt.current, got, tt.want)
			}
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusContacted, StatusOpened, StatusDownloaded, StatusQualified, StatusConverted, StatusLost} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%s) = false", s)
		}
	}
	if ValidStatus("ARCHIVED") {
		t.Error("ValidStatus(ARCHIVED) = true")
	}
}
