package dto

type EmailReceived struct {
	AccountID   string `json:"accountId"`
	Folder      string `json:"folder"`
	ImapUID     uint32 `json:"imapUid"`
	InitialSync bool   `json:"initialSync"`
}
