package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

const topCast = 5

// Source is what Summarize needs from a catalog.
type Source interface {
	Details(ctx context.Context, id int) (*Details, error)
	SeasonCredits(ctx context.Context, id, season int) (*Credits, error)
	PosterURL(posterPath string) string
}

// SeasonSummary is one row of the season table.
type SeasonSummary struct {
	Label    string   `json:"label"` // "S01"
	Name     string   `json:"name"`
	Episodes int      `json:"episodes"`
	AirDate  string   `json:"air_date"`
	Cast     []string `json:"cast"`
	Overview string   `json:"overview"`
}

// Summary is a display-ready view of a show.
type Summary struct {
	ID               int             `json:"id"`
	Name             string          `json:"name"`
	PosterURL        string          `json:"poster_url"`
	Link             string          `json:"link"`
	NumberOfSeasons  int             `json:"number_of_seasons"`
	NumberOfEpisodes int             `json:"number_of_episodes"`
	Seasons          []SeasonSummary `json:"seasons"`
}

// Summarize fetches details for show and the top-billed cast of each
// season. A season whose credits cannot be fetched gets no cast; a season
// without an overview falls back to the show overview.
func Summarize(ctx context.Context, src Source, show *Show, log zerolog.Logger) (*Summary, error) {
	d, err := src.Details(ctx, show.ID)
	if err != nil {
		return nil, err
	}
	s := &Summary{
		ID:               d.ID,
		Name:             d.Name,
		PosterURL:        src.PosterURL(firstNonEmpty(show.PosterPath, d.PosterPath)),
		Link:             ShowURL(d.ID),
		NumberOfSeasons:  d.NumberOfSeasons,
		NumberOfEpisodes: d.NumberOfEpisodes,
	}
	for _, season := range d.Seasons {
		row := SeasonSummary{
			Label:    fmt.Sprintf("S%02d", season.SeasonNumber),
			Name:     season.Name,
			Episodes: season.EpisodeCount,
			AirDate:  season.AirDate,
			Overview: firstNonEmpty(season.Overview, d.Overview),
		}
		cr, err := src.SeasonCredits(ctx, d.ID, season.SeasonNumber)
		if err != nil {
			log.Warn().Err(err).Int("tmdb_id", d.ID).Int("season_number", season.SeasonNumber).Msg("season credits unavailable")
		} else {
			for i, c := range cr.Cast {
				if i == topCast {
					break
				}
				row.Cast = append(row.Cast, c.Name)
			}
		}
		s.Seasons = append(s.Seasons, row)
	}
	return s, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
