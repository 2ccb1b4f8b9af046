package podio

import (
	"time"

	"github.com/tidwall/gjson"
)

// TimestampLayout is the format of created_on values in API responses
const TimestampLayout = "2006-01-02 15:04:05"

// External ids of the email app's fields
const (
	FieldSubject = "title"
	FieldBody    = "body"
	FieldFrom    = "from"
	FieldStatus  = "status"
)

func firstValuePath(externalID string) string {
	return `fields.#(external_id=="` + externalID + `").values.0.value`
}

// FieldValue returns the first value of a field as text. Contact and
// category values are objects; their text or name is used instead.
func FieldValue(item gjson.Result, externalID string) string {
	v := item.Get(firstValuePath(externalID))
	if !v.Exists() {
		return ""
	}
	if v.IsObject() {
		if text := v.Get("text"); text.Exists() {
			return text.String()
		}
		if name := v.Get("name"); name.Exists() {
			return name.String()
		}
		return v.Raw
	}
	return v.String()
}

// SenderEmail returns the first address of the contact in the from field
func SenderEmail(item gjson.Result) string {
	return item.Get(firstValuePath(FieldFrom) + ".mail.0").String()
}

// ParseTimestamp parses an API timestamp in loc
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(TimestampLayout, value, loc)
}
