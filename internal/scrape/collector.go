package scrape

import "context"

// Collector adapts the incremental Sink contract into a collect-all slice
// for callers that want a query's records in one piece. The incremental form
// stays canonical; this is only an accumulator over it.
type Collector struct {
	records []Record
}

// Sink returns the callback to hand to a Navigator.
func (c *Collector) Sink() Sink {
	return func(_ context.Context, rec Record) error {
		c.records = append(c.records, rec)
		return nil
	}
}

// Records returns everything collected so far, in arrival order.
func (c *Collector) Records() []Record {
	return c.records
}
