package internal

import "time"

// DateLayout is the layout of SleepSession.Date.
const DateLayout = "2006-01-02"

type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// SleepSession is open while WakeTime is nil and immutable once closed.
type SleepSession struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Date            string     `json:"date"` // calendar day sleep began, DateLayout
	SleepTime       time.Time  `json:"sleep_time"`
	WakeTime        *time.Time `json:"wake_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Flagged         bool       `json:"flagged,omitempty"` // closed with wake <= sleep
	CreatedAt       time.Time  `json:"created_at"`
}

func (s *SleepSession) IsOpen() bool {
	return s.WakeTime == nil
}

type CoinBalance struct {
	UserID    string    `json:"user_id"`
	Coins     int       `json:"coins"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Item is a cosmetic accessory for the pet avatar.
type Item struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int    `json:"price"`
}

type OwnedItem struct {
	UserID   string    `json:"user_id"`
	ItemID   string    `json:"item_id"`
	Price    int       `json:"price"`
	BoughtAt time.Time `json:"bought_at"`
}
