/*
Package content is the site content adapter: published items grouped by
content type, the media library, and the lookups the settings pipeline and
the public pages need.

It owns three SQLite tables (content_types, content and media) and builds
every query with squirrel. The public content type list is cached through a
TransientCache for an hour, since it changes only when types are
registered.
*/
package content
