package notification

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Table identifies which kind of row changed.
type Table int

const (
	TableOther Table = iota
	TablePosts
	TableComments
	TableReports
)

// ParseTable maps a table name to its Table. Unknown names map to TableOther.
func ParseTable(name string) Table {
	switch strings.TrimSpace(name) {
	case "posts":
		return TablePosts
	case "comments":
		return TableComments
	case "reports":
		return TableReports
	default:
		return TableOther
	}
}

func (t Table) String() string {
	switch t {
	case TablePosts:
		return "posts"
	case TableComments:
		return "comments"
	case TableReports:
		return "reports"
	default:
		return "other"
	}
}

// FlexID holds an identifier that may arrive as a JSON number or string.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

func (id FlexID) String() string { return string(id) }

// Record is the changed row. Only the fields used to build notifications are
// decoded; the rest of the row is ignored.
type Record struct {
	ID       FlexID `json:"id"`
	UserID   FlexID `json:"user_id"`
	Content  string `json:"content"`
	Caption  string `json:"caption"`
	Username string `json:"username"`
	PostID   FlexID `json:"post_id"`
	Name     string `json:"name"`
}

// ChangeEvent is one inbound row-change notification.
type ChangeEvent struct {
	Table     Table
	TableName string
	Record    Record
}

// ErrInvalidEvent is returned for payloads without a table or record.
var ErrInvalidEvent = errors.New("invalid change event")

// NewChangeEvent builds an event from the wire table name and raw record JSON.
func NewChangeEvent(table string, record json.RawMessage) (ChangeEvent, error) {
	if strings.TrimSpace(table) == "" {
		return ChangeEvent{}, fmt.Errorf("%w: missing table", ErrInvalidEvent)
	}
	trimmed := bytes.TrimSpace(record)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ChangeEvent{}, fmt.Errorf("%w: record must be an object", ErrInvalidEvent)
	}

	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return ChangeEvent{Table: ParseTable(table), TableName: table, Record: rec}, nil
}

// Payload is the inbound trigger body, as sent by a database webhook or a
// subscription message.
type Payload struct {
	Action string          `json:"action,omitempty"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
}

// DecodeEvent parses a {table, record} JSON document.
func DecodeEvent(data []byte) (ChangeEvent, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return NewChangeEvent(p.Table, p.Record)
}
