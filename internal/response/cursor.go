package response

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPageToken indicates a page token this service did not issue.
var ErrInvalidPageToken = errors.New("invalid page token")

// Cursor is the private content of a page token: the tier that produced the
// page, where the next page starts, and when the data was known current.
type Cursor struct {
	Tier   string `json:"t"`
	Offset int    `json:"o"`
	AsOf   int64  `json:"a"`
}

// EncodeCursor renders c as an opaque token.
func EncodeCursor(c Cursor) string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if c.Offset < 0 || c.Tier == "" {
		return Cursor{}, ErrInvalidPageToken
	}
	return c, nil
}
