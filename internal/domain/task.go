package domain

import (
	"time"
)

type TaskName string

const (
	TaskSendReminder    TaskName = "send-reminder"
	TaskConditionalCall TaskName = "conditional-call"
)

// TaskArgs is passed by value to every deferred notification task.
type TaskArgs struct {
	UserID       string `json:"user_id"`
	ReportID     string `json:"report_id"`
	DownloadLink string `json:"download_link"`
}

// QueueMessage is the transport format sent to queue backends.
type QueueMessage struct {
	TaskID      string    `json:"task_id"`
	Task        TaskName  `json:"task"`
	Args        TaskArgs  `json:"args"`
	Attempt     int       `json:"attempt"`
	NotBefore   time.Time `json:"not_before"`
	RequestedAt time.Time `json:"requested_at"`
}

// Due reports whether the message may run at the given instant.
func (m QueueMessage) Due(now time.Time) bool {
	return !now.Before(m.NotBefore)
}
