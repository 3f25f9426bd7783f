package tools

import (
	"context"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/news"
)

// SetWeather adds get_weather to the registry.
func (r *Registry) SetWeather(w Weather) {
	r.weather = w
	if w == nil {
		return
	}
	r.Register(&Tool{
		Name:        "get_weather",
		Description: "Get the current weather, or the forecast for a given date, for a specified city.",
		Parameters: object([]string{"city_name"},
			"city_name", "The name of the city.",
			"date", "Optional date of the forecast in YYYY-MM-DD format. Omit for the current weather.",
		),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			city, err := requireString(args, "city_name")
			if err != nil {
				return "", err
			}
			return r.weather.Report(ctx, city, stringArg(args, "date"))
		},
	})
}

// SetNews adds get_top_headlines to the registry.
func (r *Registry) SetNews(n News) {
	r.news = n
	if n == nil {
		return
	}
	r.Register(&Tool{
		Name:        "get_top_headlines",
		Description: "Get the top headlines news from various sources.",
		Parameters:  object(nil),
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			headlines, err := r.news.Top(ctx)
			if err != nil {
				return "", err
			}
			return news.Format(headlines), nil
		},
	})
}
