package repositories

import (
	"fmt"
	"strings"

	"github.com/mama165/sdk-go/database"
)

// InspectRow maps a raw badger entry to a row of the debug inspector.
func InspectRow(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, publicPrefix), strings.HasPrefix(key, privatePrefix):
		msg, err := unmarshalMessage(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = strings.ToUpper(string(msg.Visibility))
		row.Timestamp = msg.Timestamp.Format("15:04:05")
		row.EntityID = fmt.Sprintf("%d", msg.ID)
		row.Detail = fmt.Sprintf("%s -> %s: %s", msg.Sender, msg.Receiver, msg.Body)
	case strings.HasPrefix(key, userPrefix):
		user, err := unmarshalUser(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "USER"
		row.Timestamp = user.CreatedAt.Format("15:04:05")
		row.EntityID = user.Username
		row.Detail = "account"
	}
	return row
}
