package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
)

const (
	// TypeCacheKey is the transient holding the public type list.
	TypeCacheKey = "signpost_public_post_types"

	// TypeCacheTTL bounds how stale the cached type list may get.
	TypeCacheTTL = time.Hour
)

// InternalTypes never show up as public types, even when flagged public.
var InternalTypes = map[string]struct{}{
	"attachment":          {},
	"revision":            {},
	"nav_menu_item":       {},
	"custom_css":          {},
	"customize_changeset": {},
	"oembed_cache":        {},
	"user_request":        {},
	"wp_block":            {},
}

// Type describes a registered content type.
type Type struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	SingularLabel string `json:"singular_label"`
	Public        bool   `json:"public"`
	Hierarchical  bool   `json:"hierarchical"`
}

// RegisterType adds or updates a content type and drops the type cache.
func (s *Store) RegisterType(ctx context.Context, t Type) error {
	if t.Name == "" {
		return errors.New("content type needs a name")
	}
	if t.Label == "" {
		t.Label = t.Name
	}
	if t.SingularLabel == "" {
		t.SingularLabel = t.Label
	}
	query, args, err := squirrel.
		Insert("content_types").
		Columns("name", "label", "singular_label", "public", "hierarchical").
		Values(t.Name, t.Label, t.SingularLabel, t.Public, t.Hierarchical).
		Suffix("ON CONFLICT(name) DO UPDATE SET label = excluded.label, singular_label = excluded.singular_label, public = excluded.public, hierarchical = excluded.hierarchical").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to register content type %s: %w", t.Name, err)
	}
	return s.ClearTypeCache(ctx)
}

// Type returns a registered content type by name.
func (s *Store) Type(ctx context.Context, name string) (Type, error) {
	types, err := s.queryTypes(ctx, squirrel.Eq{"name": name})
	if err != nil {
		return Type{}, err
	}
	if len(types) == 0 {
		return Type{}, fmt.Errorf("%w: content type %s", ErrNotFound, name)
	}
	return types[0], nil
}

// PublicTypes lists the public content types: post and page first, then the
// rest by name. Internal types are never included. The list is cached.
func (s *Store) PublicTypes(ctx context.Context) ([]Type, error) {
	if s.cache != nil {
		raw, ok, err := s.cache.Transient(ctx, TypeCacheKey)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to read content type cache", "error", err)
		} else if ok {
			var cached []Type
			if err = json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	types, err := s.queryTypes(ctx, squirrel.Eq{"public": true})
	if err != nil {
		return nil, err
	}
	public := types[:0]
	for _, t := range types {
		if _, internal := InternalTypes[t.Name]; !internal {
			public = append(public, t)
		}
	}
	sort.SliceStable(public, func(i, j int) bool {
		ri, rj := builtinRank(public[i].Name), builtinRank(public[j].Name)
		if ri != rj {
			return ri < rj
		}
		return public[i].Name < public[j].Name
	})

	if s.cache != nil {
		if raw, err := json.Marshal(public); err == nil {
			if err = s.cache.SetTransient(ctx, TypeCacheKey, string(raw), TypeCacheTTL); err != nil {
				s.logger.WarnContext(ctx, "Failed to cache content types", "error", err)
			}
		}
	}
	return public, nil
}

// PublicTypeNames lists the names of PublicTypes.
func (s *Store) PublicTypeNames(ctx context.Context) ([]string, error) {
	types, err := s.PublicTypes(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Name
	}
	return names, nil
}

// ClearTypeCache forgets the cached public type list.
func (s *Store) ClearTypeCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeleteTransient(ctx, TypeCacheKey)
}

func builtinRank(name string) int {
	switch name {
	case "post":
		return 0
	case "page":
		return 1
	}
	return 2
}

func (s *Store) queryTypes(ctx context.Context, where squirrel.Sqlizer) ([]Type, error) {
	query, args, err := squirrel.
		Select("name", "label", "singular_label", "public", "hierarchical").
		From("content_types").
		Where(where).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query content types: %w", err)
	}
	defer rows.Close()

	var types []Type
	for rows.Next() {
		var t Type
		if err = rows.Scan(&t.Name, &t.Label, &t.SingularLabel, &t.Public, &t.Hierarchical); err != nil {
			return nil, fmt.Errorf("failed to scan content type: %w", err)
		}
		types = append(types, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return types, nil
}
