package tools

import (
	"context"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/calendar"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/email"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/homeassistant"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/news"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/transit"
)

// Light is the smart bulb.
type Light interface {
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	SetBrightness(ctx context.Context, b homeassistant.Brightness) error
}

// Calendar is the user's event calendar.
type Calendar interface {
	ParseDay(date string) (time.Time, error)
	EventsOn(ctx context.Context, day time.Time) ([]calendar.Event, error)
	Add(ctx context.Context, title string, start, end time.Time) (calendar.Event, error)
	RemoveByTitle(ctx context.Context, title string, day time.Time) (calendar.Event, error)
}

// Mailbox reads and sends mail.
type Mailbox interface {
	Unread(ctx context.Context, limit int) ([]email.Envelope, error)
	Send(ctx context.Context, to, subject, body string) error
}

// Contacts resolves a spoken name to an address.
type Contacts interface {
	ResolveEmail(ctx context.Context, name string) (string, error)
}

// Weather describes current or forecast conditions.
type Weather interface {
	Report(ctx context.Context, place, date string) (string, error)
}

// News returns top headlines.
type News interface {
	Top(ctx context.Context) ([]news.Headline, error)
}

// Transit plans journeys.
type Transit interface {
	TravelSuggestions(ctx context.Context, origin, destination string) (string, error)
	NearbyStops(ctx context.Context, lat, lon float64, limit int) ([]transit.NearbyStop, error)
}

// Geocoder turns coordinates into an address.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Timer starts device countdowns.
type Timer interface {
	Set(ctx context.Context, duration string) error
}
