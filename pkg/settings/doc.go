/*
Package settings holds the configuration pipeline behind the not-found and
sitemap pages: a schema registry describing every settings group, a sanitizer
that turns untrusted admin input into typed configuration, and an
SQLite-backed store that persists it.

Raw input only exists at the parse boundary (see Input). Everything past
Sanitize is one of the typed group configs: ColorConfig, NotFoundConfig or
SitemapConfig. The sanitizer never rejects a whole submission because of one
bad field; it substitutes the schema default and reports a FieldWarning.

The store also keeps short-lived transients and counters with an expiry,
which the search rate limiter and the content type cache build on.
*/
package settings
