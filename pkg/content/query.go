package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
)

// ListOptions filters and orders a listing of published content.
type ListOptions struct {
	Type    string
	Exclude []int64
	// ParentID restricts the listing to direct children when non-nil.
	ParentID *int64
	// OrderBy is "title" (default, case-insensitive), "date" or "menu_order".
	OrderBy string
	// Order is "ASC" (default) or "DESC".
	Order string
	// Limit caps the result size; 0 means no cap.
	Limit uint64
}

func (o ListOptions) orderClause() string {
	dir := "ASC"
	if strings.EqualFold(o.Order, "DESC") {
		dir = "DESC"
	}
	switch o.OrderBy {
	case "date":
		return "published_at " + dir
	case "menu_order":
		return "menu_order " + dir
	}
	return "title COLLATE NOCASE " + dir
}

// List returns published items of one type.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Item, error) {
	where := squirrel.And{squirrel.Eq{"status": StatusPublish}}
	if opts.Type != "" {
		where = append(where, squirrel.Eq{"type": opts.Type})
	}
	if len(opts.Exclude) > 0 {
		where = append(where, squirrel.NotEq{"id": opts.Exclude})
	}
	if opts.ParentID != nil {
		where = append(where, squirrel.Eq{"parent_id": *opts.ParentID})
	}
	b := squirrel.
		Select(itemColumns...).
		From("content").
		Where(where).
		OrderBy(opts.orderClause(), "id ASC")
	if opts.Limit > 0 {
		b = b.Limit(opts.Limit)
	}
	return s.queryItems(ctx, b)
}

// Tree lists the published items of a type. For hierarchical types items
// are nested under their parents; an item whose parent is excluded or
// unpublished becomes a root. Siblings keep title order.
func (s *Store) Tree(ctx context.Context, typeName string, exclude []int64) ([]Item, error) {
	t, err := s.Type(ctx, typeName)
	if err != nil {
		return nil, err
	}
	items, err := s.List(ctx, ListOptions{Type: typeName, Exclude: exclude})
	if err != nil {
		return nil, err
	}
	if !t.Hierarchical {
		return items, nil
	}

	present := make(map[int64]bool, len(items))
	for _, it := range items {
		present[it.ID] = true
	}
	children := make(map[int64][]Item)
	var roots []Item
	for _, it := range items {
		if it.ParentID != 0 && present[it.ParentID] && it.ParentID != it.ID {
			children[it.ParentID] = append(children[it.ParentID], it)
			continue
		}
		roots = append(roots, it)
	}

	visited := make(map[int64]bool, len(items))
	var attach func(list []Item) []Item
	attach = func(list []Item) []Item {
		out := make([]Item, 0, len(list))
		for _, it := range list {
			if visited[it.ID] {
				continue
			}
			visited[it.ID] = true
			it.Children = attach(children[it.ID])
			out = append(out, it)
		}
		return out
	}
	tree := attach(roots)
	// Items caught in a parent cycle are never reached from a root.
	for _, it := range items {
		if !visited[it.ID] {
			tree = append(tree, attach([]Item{it})...)
		}
	}
	return tree, nil
}

// Section is one content type column of the sitemap.
type Section struct {
	Type  Type   `json:"type"`
	Items []Item `json:"items"`
}

// Sections builds the sitemap columns for the given types in order. Types
// that are unknown or have no published items are left out.
func (s *Store) Sections(ctx context.Context, types []string, exclude []int64) ([]Section, error) {
	var sections []Section
	for _, name := range types {
		t, err := s.Type(ctx, name)
		if err != nil {
			s.logger.DebugContext(ctx, "Skipping sitemap type", "type", name, "error", err)
			continue
		}
		items, err := s.Tree(ctx, name, exclude)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			continue
		}
		sections = append(sections, Section{Type: t, Items: items})
	}
	return sections, nil
}

// SearchResult is one hit of the public search.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search finds published items of the given types whose title or body
// contains term. Title matches rank first, newer content next.
func (s *Store) Search(ctx context.Context, term string, types []string, limit uint64) ([]SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" || len(types) == 0 {
		return []SearchResult{}, nil
	}
	pattern := "%" + likeEscaper.Replace(term) + "%"

	b := squirrel.
		Select("c.id", "c.type", "c.slug", "c.title", "t.singular_label").
		From("content c").
		Join("content_types t ON t.name = c.type").
		Where(squirrel.Eq{"c.status": StatusPublish, "c.type": types}).
		Where(squirrel.Or{
			squirrel.Expr(`c.title LIKE ? ESCAPE '\'`, pattern),
			squirrel.Expr(`c.body LIKE ? ESCAPE '\'`, pattern),
		}).
		OrderByClause(`CASE WHEN c.title LIKE ? ESCAPE '\' THEN 0 ELSE 1 END`, pattern).
		OrderBy("c.published_at DESC", "c.id DESC")
	if limit > 0 {
		b = b.Limit(limit)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build search: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search content: %w", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var it Item
		var label string
		if err = rows.Scan(&it.ID, &it.Type, &it.Slug, &it.Title, &label); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, SearchResult{Title: it.Title, URL: Permalink(it), Type: label})
	}
	return results, rows.Err()
}

func (s *Store) queryItems(ctx context.Context, b squirrel.SelectBuilder) ([]Item, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
