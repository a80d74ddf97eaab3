// Package store defines the persisted entities (businesses, crawl runs) and
// the repository contracts around them. Implementations live in other
// packages; this package must not import database drivers or concrete clients.
package store
