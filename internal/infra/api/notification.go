package api

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

// notification is the union of the provider's webhook and IPN shapes.
// Ids arrive as strings or numbers depending on the topic.
type notification struct {
	Data struct {
		ID            json.RawMessage `json:"id"`
		PreapprovalID json.RawMessage `json:"preapproval_id"`
	} `json:"data"`
	ID       json.RawMessage `json:"id"`
	Resource json.RawMessage `json:"resource"`
}

// resourceID picks the preapproval id from a notification body, falling back
// to the data.id and id query parameters.
func resourceID(body []byte, q url.Values) string {
	var n notification
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &n) == nil {
		for _, raw := range []json.RawMessage{n.Data.ID, n.Data.PreapprovalID, n.ID, resourceObjectID(n.Resource)} {
			if id := rawID(raw); id != "" {
				return id
			}
		}
	}
	for _, k := range []string{"data.id", "id"} {
		if id := strings.TrimSpace(q.Get(k)); id != "" {
			return id
		}
	}
	return ""
}

// resourceObjectID handles "resource": {"id": ...}; URL-style resources are ignored.
func resourceObjectID(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var obj struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return nil
	}
	return obj.ID
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}
