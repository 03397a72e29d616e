// Package calendar maps symbols to exchange calendars and plans how far back
// a fetch must reach to cover a number of sessions.
package calendar

import (
	"log"
	"strings"
	"sync"
	"time"

	xcal "github.com/scmhub/calendar"

	"stock-analyzer/internal/model"
)

// Yahoo suffix → ISO 10383 MIC. Symbols without a known suffix trade on NYSE.
var suffixMIC = map[string]string{
	".NS": "xnse",
	".BO": "xbom",
	".L":  "xlon",
	".PA": "xpar",
	".DE": "xfra",
	".AS": "xams",
	".BR": "xbru",
	".MI": "xmil",
	".MC": "xmad",
	".ST": "xsto",
	".CO": "xcse",
	".HE": "xhel",
	".VI": "xwbo",
	".SW": "xswx",
	".TO": "xtse",
	".T":  "xtks",
	".HK": "xhkg",
	".AX": "xasx",
	".KS": "xkrx",
	".TW": "xtai",
	".SS": "xshg",
	".SZ": "xshe",
}

const defaultMIC = "xnys"

// MICFor returns the exchange code for a Yahoo-style symbol.
func MICFor(symbol string) string {
	s := strings.ToUpper(symbol)
	if i := strings.LastIndexByte(s, '.'); i > 0 {
		if mic, ok := suffixMIC[s[i:]]; ok {
			return mic
		}
	}
	return defaultMIC
}

// Calendar answers whether a date is a session for one exchange. Without
// exchange data it treats Monday to Friday as sessions.
type Calendar struct {
	MIC string
	cal *xcal.Calendar
	loc *time.Location
}

// Weekdays is the fallback calendar: every weekday is a session, in UTC.
func Weekdays() *Calendar {
	return &Calendar{MIC: "weekdays", loc: time.UTC}
}

// Location returns the exchange time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// IsBusinessDay reports whether t (read in the exchange zone) is a session.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	t = t.In(c.loc)
	if c.cal == nil {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(t)
}

var (
	mu    sync.Mutex
	cache = map[string]*Calendar{}
)

// For returns the calendar of symbol's exchange, loading it once per MIC.
func For(symbol string) *Calendar {
	mic := MICFor(symbol)

	mu.Lock()
	defer mu.Unlock()
	if c, ok := cache[mic]; ok {
		return c
	}

	c := Weekdays()
	if cal := xcal.GetCalendar(mic); cal != nil {
		c = &Calendar{MIC: mic, cal: cal, loc: cal.Loc}
	} else if cal := xcal.GetCalendar(defaultMIC); cal != nil {
		log.Printf("[calendar] no calendar for %s, using %s", mic, defaultMIC)
		c = &Calendar{MIC: defaultMIC, cal: cal, loc: cal.Loc}
	} else {
		log.Printf("[calendar] no calendar for %s, using weekdays", mic)
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	cache[mic] = c
	return c
}

// Planner turns "N sessions up to now" into a concrete fetch window.
type Planner struct {
	// Slack adds sessions beyond the request to absorb bars the source omits.
	Slack int
	// Calendars resolves a symbol's calendar; nil means For.
	Calendars func(symbol string) *Calendar
}

// Plan walks back from asOf until bars+Slack sessions are covered and returns
// a request spanning them. The From date is the first covered session at
// midnight UTC; To is asOf.
func (p Planner) Plan(symbol string, bars int, asOf time.Time) model.FetchRequest {
	lookup := p.Calendars
	if lookup == nil {
		lookup = For
	}
	cal := lookup(symbol)

	need := bars + p.Slack
	if need < 1 {
		need = 1
	}
	local := asOf.In(cal.Location())
	d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, cal.Location())

	// Bound the walk in case a calendar reports no sessions at all.
	limit := need*3 + 30
	for found := 0; limit > 0; limit-- {
		if cal.IsBusinessDay(d) {
			found++
			if found == need {
				break
			}
		}
		d = d.AddDate(0, 0, -1)
	}

	return model.FetchRequest{
		Symbol: symbol,
		From:   time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
		To:     asOf,
	}
}

// IsSession reports whether asOf is a session day on symbol's exchange.
func (p Planner) IsSession(symbol string, asOf time.Time) bool {
	lookup := p.Calendars
	if lookup == nil {
		lookup = For
	}
	return lookup(symbol).IsBusinessDay(asOf)
}
