package ulid

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// New - ULID с текущим временем; монотонный внутри одной миллисекунды
func New() string {
	return NewFromTime(time.Now())
}

// NewFromTime - ULID с заданным временем (created_at отзыва и его id совпадают по миллисекунде)
func NewFromTime(t time.Time) string {
	entropyLock.Lock()
	defer entropyLock.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Time извлекает метку времени из ULID
func Time(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()), nil
}
