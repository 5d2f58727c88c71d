package services

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"reviewhub_backend/internal/repositories"
)

// reviewCursor - непрозрачный для клиента курсор; привязан к сортировке и фильтру
type reviewCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
	Rating    int       `json:"r,omitempty"`
	Sort      string    `json:"s"`
	Filter    int       `json:"f,omitempty"`
}

func encodeCursor(c reviewCursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeCursor возвращает false для любого повреждённого курсора
func decodeCursor(s string) (reviewCursor, bool) {
	var c reviewCursor
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, false
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, false
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return c, false
	}
	return c, true
}

func (c reviewCursor) toRepo() *repositories.ReviewCursor {
	return &repositories.ReviewCursor{CreatedAt: c.CreatedAt, ID: c.ID, Rating: c.Rating}
}
