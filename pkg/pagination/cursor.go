package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cursor is the opaque continuation token handed out by paged reads. Short
// field names keep the encoded token small; it is serialized to minified JSON
// and encoded with URL-safe base64.
//
// Fields:
//   - v:   schema version
//   - p:   canonical workbook path
//   - s:   sheet name
//   - r:   normalized A1 range the read was issued for
//   - off: rows already returned from the top of the range
//   - ps:  page size in rows
//   - wbv: workbook version snapshot (file mtime, unix nanoseconds)
//   - f:   whether formulas were requested
//   - iat: issued-at timestamp (unix seconds)
type Cursor struct {
	V   int    `json:"v"`
	P   string `json:"p"`
	S   string `json:"s"`
	R   string `json:"r"`
	Off int    `json:"off"`
	Ps  int    `json:"ps"`
	Wbv int64  `json:"wbv"`
	F   bool   `json:"f,omitempty"`
	Iat int64  `json:"iat"`
}

// ErrStale reports a cursor whose workbook changed after it was issued.
var ErrStale = errors.New("cursor: workbook changed since cursor was issued")

// EncodeCursor serializes and encodes the cursor as URL-safe base64 (without padding).
func EncodeCursor(c Cursor) (string, error) {
	if err := validate(&c); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor decodes a URL-safe base64 token and parses the JSON cursor.
func DecodeCursor(token string) (*Cursor, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil, errors.New("cursor: empty token")
	}
	data, err := base64.RawURLEncoding.DecodeString(t)
	if err != nil {
		return nil, fmt.Errorf("cursor: invalid base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cursor: invalid json: %w", err)
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Check reports whether the cursor still applies to the workbook at path
// with the given version.
func (c *Cursor) Check(path string, version int64) error {
	if c.P != path {
		return errors.New("cursor: issued for a different workbook")
	}
	if c.Wbv != 0 && c.Wbv != version {
		return ErrStale
	}
	return nil
}

func validate(c *Cursor) error {
	if c.V <= 0 {
		c.V = 1
	}
	if c.Iat == 0 {
		c.Iat = time.Now().Unix()
	}
	if strings.TrimSpace(c.P) == "" {
		return errors.New("cursor: p (path) required")
	}
	if strings.TrimSpace(c.S) == "" {
		return errors.New("cursor: s (sheet) required")
	}
	if strings.TrimSpace(c.R) == "" {
		return errors.New("cursor: r (range) required")
	}
	if c.Off < 0 {
		return errors.New("cursor: off must be >= 0")
	}
	if c.Ps <= 0 {
		return errors.New("cursor: ps must be > 0")
	}
	if c.Wbv < 0 {
		c.Wbv = 0
	}
	return nil
}

// NextOffset computes the next offset after returning n rows.
func NextOffset(curr, n int) int {
	if curr < 0 {
		curr = 0
	}
	if n <= 0 {
		return curr
	}
	return curr + n
}
