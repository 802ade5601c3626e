package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
)

// Media is an image in the media library.
type Media struct {
	ID     int64  `json:"id"`
	URL    string `json:"url"`
	Alt    string `json:"alt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// AddMedia stores a media asset and returns its id.
func (s *Store) AddMedia(ctx context.Context, m Media) (int64, error) {
	if m.URL == "" {
		return 0, errors.New("media needs a url")
	}
	query, args, err := squirrel.
		Insert("media").
		Columns("url", "alt", "width", "height").
		Values(m.URL, m.Alt, m.Width, m.Height).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert media: %w", err)
	}
	return res.LastInsertId()
}

// Media resolves a media id. Id 0 means no image and always yields
// ErrNotFound.
func (s *Store) Media(ctx context.Context, id int64) (Media, error) {
	if id <= 0 {
		return Media{}, fmt.Errorf("%w: media %d", ErrNotFound, id)
	}
	query, args, err := squirrel.
		Select("id", "url", "alt", "width", "height").
		From("media").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return Media{}, fmt.Errorf("failed to build query: %w", err)
	}
	var m Media
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&m.ID, &m.URL, &m.Alt, &m.Width, &m.Height)
	if errors.Is(err, sql.ErrNoRows) {
		return Media{}, fmt.Errorf("%w: media %d", ErrNotFound, id)
	}
	if err != nil {
		return Media{}, fmt.Errorf("failed to load media %d: %w", id, err)
	}
	return m, nil
}

// MediaExists reports whether id resolves to a media asset.
func (s *Store) MediaExists(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	return s.exists(ctx, squirrel.Select("1").From("media").Where(squirrel.Eq{"id": id}).Limit(1))
}
