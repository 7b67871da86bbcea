package dto

import "time"

type SyncCompleted struct {
	AccountID         string    `json:"accountId"`
	Mode              string    `json:"mode"`
	FoldersSeen       int       `json:"foldersSeen"`
	MessagesPersisted int       `json:"messagesPersisted"`
	Failures          int       `json:"failures"`
	FinishedAt        time.Time `json:"finishedAt"`
}
