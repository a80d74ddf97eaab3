// Package export writes the sales-lead CSV of businesses without websites.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmaguire/leadharvester/internal/store"
)

// Header matches the columns the sales side expects.
var Header = []string{"Business Name", "Phone", "Address", "City", "Category", "Last Scraped"}

// Filename builds the auto-generated output name embedding the city filter
// and a timestamp.
func Filename(city string, now time.Time) string {
	suffix := "all"
	if city != "" {
		suffix = strings.ToLower(strings.ReplaceAll(city, " ", "_"))
	}
	return fmt.Sprintf("leads_without_websites_%s_%s.csv", suffix, now.Format("20060102_150405"))
}

// Leads reads every business without a website (optionally filtered by city)
// and writes one CSV row per business to path. It returns the number of rows
// written.
func Leads(ctx context.Context, repo store.LeadRepository, city, path string) (int, error) {
	leads, err := repo.LeadsWithoutWebsite(ctx, city)
	if err != nil {
		return 0, fmt.Errorf("read leads: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(Header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for _, lead := range leads {
		row := []string{
			lead.Name,
			lead.Phone,
			lead.Address,
			lead.City,
			lead.Category,
			lead.LastScraped.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return 0, fmt.Errorf("write row for %s: %w", lead.Name, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	return len(leads), nil
}
