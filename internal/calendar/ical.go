// Package calendar converts between stored calendar events and iCalendar
// data, and expands recurring events into concrete occurrences.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/taskboard/backend/internal/storage/models"
)

// ErrPrivateAddress is returned when a feed URL resolves to a loopback,
// private or link-local address and such addresses are refused.
var ErrPrivateAddress = errors.New("calendar address is not public")

// Parser parses iCal/ICS calendar feeds into calendar events.
type Parser struct {
	httpClient *http.Client
}

// ParserOption configures a Parser.
type ParserOption func(*net.Dialer)

// WithPublicAddressesOnly refuses to connect to non-public addresses. The
// check runs on the resolved address of every connection, redirects
// included.
func WithPublicAddressesOnly() ParserOption {
	return func(d *net.Dialer) {
		d.Control = func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if ip := net.ParseIP(host); ip == nil || !isPublic(ip) {
				return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
			}
			return nil
		}
	}
}

func isPublic(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast())
}

// NewParser creates a new iCal parser.
func NewParser(opts ...ParserOption) *Parser {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(dialer)
	}

	// Feeds are fetched directly so that dial checks see the feed's address.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &Parser{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// FetchAndParse downloads and parses an iCal feed from a URL.
func (p *Parser) FetchAndParse(ctx context.Context, url string) ([]models.CalendarEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building calendar request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar returned status %d", resp.StatusCode)
	}

	return p.Parse(resp.Body)
}

// Parse reads VEVENTs from r. Entries without a usable start are skipped.
// The returned events carry no id or owner.
func (p *Parser) Parse(r io.Reader) ([]models.CalendarEvent, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	events := make([]models.CalendarEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, err := eventFromVEvent(ve)
		if err != nil {
			log.Printf("Skipping calendar entry: %v", err)
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

func eventFromVEvent(ve *ical.VEvent) (models.CalendarEvent, error) {
	ev := models.CalendarEvent{Type: models.EventTypeBusy}

	if prop := ve.GetProperty(ical.ComponentPropertySummary); prop != nil {
		ev.Title = unescape(prop.Value)
	}
	if prop := ve.GetProperty(ical.ComponentPropertyDescription); prop != nil && prop.Value != "" {
		desc := unescape(prop.Value)
		ev.Description = &desc
	}
	if prop := ve.GetProperty(ical.ComponentPropertyCategories); prop != nil {
		for _, category := range strings.Split(prop.Value, ",") {
			category = strings.ToLower(strings.TrimSpace(category))
			if models.ValidEventType(category) {
				ev.Type = category
				break
			}
		}
	}
	if prop := ve.GetProperty(ical.ComponentPropertyRrule); prop != nil && prop.Value != "" {
		rule := prop.Value
		if err := ValidateRule(rule); err != nil {
			log.Printf("Dropping recurrence of %q: %v", ev.Title, err)
		} else {
			ev.RRule = &rule
		}
	}

	ev.AllDay = isAllDay(ve.GetProperty(ical.ComponentPropertyDtStart))

	var err error
	if ev.AllDay {
		ev.StartTime, err = ve.GetAllDayStartAt()
	} else {
		ev.StartTime, err = ve.GetStartAt()
	}
	if err != nil {
		return ev, fmt.Errorf("reading start of %q: %w", ev.Title, err)
	}

	if ev.AllDay {
		ev.EndTime, err = ve.GetAllDayEndAt()
	} else {
		ev.EndTime, err = ve.GetEndAt()
	}
	if err != nil || ev.EndTime.Before(ev.StartTime) {
		// No DTEND: an all-day entry covers its start date, a timed one is instantaneous.
		ev.EndTime = ev.StartTime
		if ev.AllDay {
			ev.EndTime = ev.StartTime.AddDate(0, 0, 1)
		}
	}

	if ev.AllDay {
		ev.StartTime = dateOf(ev.StartTime)
		ev.EndTime = dateOf(ev.EndTime)
	} else {
		ev.StartTime = ev.StartTime.UTC()
		ev.EndTime = ev.EndTime.UTC()
	}
	if ev.Title == "" {
		ev.Title = "Untitled event"
	}

	return ev, nil
}

// isAllDay reports whether a DTSTART property holds a date rather than a
// date-time.
func isAllDay(prop *ical.IANAProperty) bool {
	if prop == nil {
		return false
	}
	for _, v := range prop.ICalParameters["VALUE"] {
		if strings.EqualFold(v, "DATE") {
			return true
		}
	}
	return !strings.Contains(prop.Value, "T")
}

// unescape reverses iCal text escaping.
func unescape(value string) string {
	value = strings.ReplaceAll(value, "\\n", "\n")
	value = strings.ReplaceAll(value, "\\N", "\n")
	value = strings.ReplaceAll(value, "\\,", ",")
	value = strings.ReplaceAll(value, "\\;", ";")
	return strings.ReplaceAll(value, "\\\\", "\\")
}
