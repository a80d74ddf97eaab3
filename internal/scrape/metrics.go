package scrape

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsPacedTotal counts navigation requests that went through the pacer.
	requestsPacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadharvester_requests_total",
		Help: "The total number of paced navigation requests issued.",
	})
	// sessionBreaksTotal counts the longer pauses taken between sessions.
	sessionBreaksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadharvester_session_breaks_total",
		Help: "The total number of session breaks taken.",
	})
	// listingsExtractedTotal counts listings turned into records.
	listingsExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadharvester_listings_extracted_total",
		Help: "The total number of listings successfully extracted.",
	})
	// listingsSkippedTotal counts listings abandoned after a per-listing error.
	listingsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadharvester_listings_skipped_total",
		Help: "The total number of listings skipped due to errors.",
	})
	// queriesTotal counts (location, category) queries by outcome.
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadharvester_queries_total",
		Help: "The total number of location/category queries by outcome.",
	}, []string{"outcome"})
	// upsertsTotal counts persistence attempts by outcome.
	upsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadharvester_upserts_total",
		Help: "The total number of business upserts by outcome.",
	}, []string{"outcome"})
)
