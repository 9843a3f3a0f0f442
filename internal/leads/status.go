package leads

// Status is a lead's stage in the sales funnel. Automatic transitions only
// move forward along the funnel order; admin overrides may set any status.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusContacted  Status = "CONTACTED"
	StatusOpened     Status = "OPENED"
	StatusDownloaded Status = "DOWNLOADED"
	StatusQualified  Status = "QUALIFIED"
	StatusConverted  Status = "CONVERTED"
	StatusLost       Status = "LOST"
)

// funnelRank orders the statuses automatic transitions may walk. CONTACTED
// and LOST are admin-only and sit outside the automatic funnel.
var funnelRank = map[Status]int{
	StatusNew:        0,
	StatusOpened:     1,
	StatusDownloaded: 2,
	StatusQualified:  3,
	StatusConverted:  4,
}

// FunnelStages returns the automatic funnel statuses in order.
func FunnelStages() []Status {
	return []Status{StatusNew, StatusOpened, StatusDownloaded, StatusQualified, StatusConverted}
}

// FunnelRank returns the position of s in the automatic funnel; ok is
// false for the admin-only statuses.
func FunnelRank(s Status) (int, bool) {
	rank, ok := funnelRank[s]
	return rank, ok
}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusContacted, StatusOpened, StatusDownloaded,
		StatusQualified, StatusConverted, StatusLost:
		return true
	}
	return false
}

// DeriveStatus recomputes the automatic status from engagement flags.
// It never regresses: when current already sits at or past the stage the
// flags imply, current is returned unchanged. Admin-only statuses
// (CONTACTED, QUALIFIED, CONVERTED, LOST) are sticky against automatic
// advancement except that DOWNLOADED may still follow OPENED.
func DeriveStatus(current Status, flags EngagementFlags) Status {
	rank, automatic := funnelRank[current]
	if !automatic {
		// CONTACTED and LOST were set by an admin; engagement events
		// do not move the lead out of them.
		return current
	}

	if flags.DownloadLinkClicked && rank <= funnelRank[StatusOpened] {
		return StatusDownloaded
	}
	if flags.EmailOpened && current == StatusNew {
		return StatusOpened
	}
	return current
}
