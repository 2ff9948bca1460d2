package repository

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourorg/forum-chat/internal/apperr"
	"github.com/yourorg/forum-chat/internal/models"
)

// Cursor marks a position in a channel's message order. It encodes both
// ordering fields so pagination stays stable under concurrent inserts.
type Cursor struct {
	CreatedAtNano int64 `json:"t"`
	Seq           int64 `json:"s"`
}

func CursorFor(m *models.Message) Cursor {
	return Cursor{CreatedAtNano: m.CreatedAt.UnixNano(), Seq: m.Seq}
}

func (c Cursor) CreatedAt() time.Time {
	return time.Unix(0, c.CreatedAtNano).UTC()
}

func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeCursor(s string) (Cursor, error) {
	var c Cursor
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("%w: bad cursor", apperr.ErrValidation)
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("%w: bad cursor", apperr.ErrValidation)
	}
	return c, nil
}

// Before reports whether c points strictly earlier than d in the
// (created_at, seq) order.
func (c Cursor) Before(d Cursor) bool {
	if c.CreatedAtNano != d.CreatedAtNano {
		return c.CreatedAtNano < d.CreatedAtNano
	}
	return c.Seq < d.Seq
}
