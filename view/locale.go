package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/kkn-guyangan/desaweb/content"
)

// Locale holds everything date and fallback rendering depends on.
type Locale struct {
	Name        string
	Months      [12]string
	Zone        *time.Location
	NoDate      string
	NoContent   string
	AllCategory string
}

// Indonesian is the site default. Dates render in Western Indonesia Time.
var Indonesian = Locale{
	Name: "id",
	Months: [12]string{
		"Januari", "Februari", "Maret", "April", "Mei", "Juni",
		"Juli", "Agustus", "September", "Oktober", "November", "Desember",
	},
	// A fixed zone avoids depending on tzdata in minimal containers.
	Zone:        time.FixedZone("WIB", 7*60*60),
	NoDate:      "Tanggal tidak tersedia",
	NoContent:   "Konten tidak tersedia",
	AllCategory: "Semua Kategori",
}

// English is offered for visitors and tests.
var English = Locale{
	Name: "en",
	Months: [12]string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	},
	Zone:        time.UTC,
	NoDate:      "Date unavailable",
	NoContent:   "No content available",
	AllCategory: "All categories",
}

// LocaleByName returns the locale for a language tag such as "id" or
// "en-US". Unknown tags fall back to Indonesian.
func LocaleByName(name string) Locale {
	lang, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(name)), "-")
	if lang == "en" {
		return English
	}
	return Indonesian
}

func (l Locale) zone() *time.Location {
	if l.Zone == nil {
		return time.UTC
	}
	return l.Zone
}

// FormatDate renders ts as a long date such as "2 Januari 2025", or the
// locale's placeholder when ts is absent.
func FormatDate(ts content.Timestamp, l Locale) string {
	if !ts.Valid || ts.Time.IsZero() {
		return l.NoDate
	}
	t := ts.Time.In(l.zone())
	return fmt.Sprintf("%d %s %d", t.Day(), l.Months[t.Month()-1], t.Year())
}

// FormatTime renders the clock time as "15.04", or "" when ts is absent.
func FormatTime(ts content.Timestamp, l Locale) string {
	if !ts.Valid || ts.Time.IsZero() {
		return ""
	}
	return ts.Time.In(l.zone()).Format("15.04")
}
