// Package crawler sequences a FARA Active Foreign Principals crawl: it finds
// the worksheet from the entry page, posts for the full result table, resolves
// every row's detail page on a bounded pool, and hands completed records to
// the configured sink and feed.
package crawler
