package domain

import (
	"time"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// DefaultPlan is the section structure every generated report starts with.
var DefaultPlan = []string{"introduction", "développement", "conclusion"}

// Report tracks a generated document plus its delivery state.
// Location stays empty until rendering completes and is written once.
type Report struct {
	ID          string
	UserID      string
	Title       string
	Plan        []string
	GeneratedAt time.Time
	Location    string
	Downloaded  bool
	EmailSent   bool
	CallPlaced  bool
}

type Message struct {
	ID        string
	UserID    string
	Body      string
	Sender    Sender
	CreatedAt time.Time
}

// ReportHistory is the short per-user summary injected in conversational prompts.
type ReportHistory struct {
	Count     int
	LastTitle string
}

func SummarizeReports(reports []Report) ReportHistory {
	if len(reports) == 0 {
		return ReportHistory{}
	}
	latest := reports[0]
	for _, report := range reports[1:] {
		if report.GeneratedAt.After(latest.GeneratedAt) {
			latest = report
		}
	}
	return ReportHistory{Count: len(reports), LastTitle: latest.Title}
}
