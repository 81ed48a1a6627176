package model

const (
	// SettingSMS holds the notification threshold N. 0 disables notifications.
	SettingSMS = "sms"
)

type Setting struct {
	Key   string `db:"key" json:"key"`
	Value string `db:"value" json:"value"`
}
