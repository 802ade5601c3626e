/*
Package templating renders the public not-found and sitemap pages with
html/template.

A default theme is compiled into the binary. A theme directory on disk may
override any of its files by name: full pages are "*.tmpl.html" files and
shared blocks are "*.part.html" files. Refresh reloads the theme without a
restart, and every method is safe for concurrent use.

All output escaping is left to html/template. Values reach the templates as
the NotFoundPage and SitemapPage view models.
*/
package templating
