package model

import "regexp"

// QueueType identifies a competition category. The set is closed; see QueueTypes.
type QueueType string

const (
	QueueTypeFormula QueueType = "formula"
	QueueTypeBaja    QueueType = "baja"
)

// QueueTypeInfo is the static description of a queue type. Short is the code
// printed in outbound SMS text.
type QueueTypeInfo struct {
	ID    QueueType
	Name  string
	Short string
}

var queueTypes = []QueueTypeInfo{
	{ID: QueueTypeFormula, Name: "Formula", Short: "FSK"},
	{ID: QueueTypeBaja, Name: "Baja", Short: "BSK"},
}

// QueueTypes returns the known queue types in display order.
func QueueTypes() []QueueTypeInfo {
	out := make([]QueueTypeInfo, len(queueTypes))
	copy(out, queueTypes)
	return out
}

func LookupQueueType(id string) (QueueTypeInfo, bool) {
	for _, qt := range queueTypes {
		if string(qt.ID) == id {
			return qt, true
		}
	}
	return QueueTypeInfo{}, false
}

var phonePattern = regexp.MustCompile(`^010\d{8}$`)

// IsValidPhone reports whether phone is a Korean mobile number in 010XXXXXXXX form.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// QueueEntry is one waiting participant. Timestamp is wall-clock milliseconds
// at insertion.
type QueueEntry struct {
	Phone     string    `db:"phone" json:"phone"`
	Timestamp int64     `db:"timestamp" json:"timestamp"`
	Type      QueueType `db:"type" json:"type"`
}

type CreateQueueEntryParams struct {
	Phone     string
	Timestamp int64
	Type      QueueType
}

// Rank is the 1-based position of a phone within its queue type.
type Rank struct {
	Type QueueType `db:"type" json:"type"`
	Rank int       `db:"rank" json:"rank"`
}

// QueueSummary is the public view of a queue type. Length is always counted
// live from the store.
type QueueSummary struct {
	Name   string `json:"name"`
	Short  string `json:"short"`
	Length int    `json:"length"`
}
