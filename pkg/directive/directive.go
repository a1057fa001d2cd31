// Package directive implements the RWhois directive processor (spec C7):
// the dash-prefixed commands a session may issue in place of a query
// (-rwhois, -limit, -holdconnect, -directive, -xfer, -status, -quit).
// Grounded on original_source/rwhoisd/DirectiveProcessor.py.
package directive

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"rwhoisd/pkg/object"
	"rwhoisd/pkg/rwerr"
)

// SessionState is the subset of session.Context a directive handler can
// read or mutate. Defined here (rather than importing pkg/session) to keep
// the directive table free of a dependency on the session package's own
// lazily-created query parser.
type SessionState interface {
	Limit() int
	SetLimit(int)
	HoldConnect() bool
	SetHoldConnect(bool)
	RequestQuit()
}

// DB is the subset of store.Store a directive handler needs.
type DB interface {
	IsAuthArea(area string) bool
	IsObjectClass(class string) bool
	IsAttribute(attr string) bool
	ObjectCount() int
	ObjectIterator() []*object.Object
}

// Limits bounds what -limit may set a session's response limit to.
type Limits struct {
	Min int
	Max int
}

// Processor dispatches directive lines against a DB and a banner string.
type Processor struct {
	DB       DB
	Limits   Limits
	Banner   string // the full "%rwhois V-1.5 <host> (<impl> <version>)" string, no CRLF
	handlers map[string]func(*Processor, SessionState, []string) string
}

// New returns a Processor with the standard directive table wired in.
func New(db DB, limits Limits, banner string) *Processor {
	p := &Processor{DB: db, Limits: limits, Banner: banner}
	p.handlers = map[string]func(*Processor, SessionState, []string) string{
		"rwhois":      (*Processor).rwhoisDirective,
		"limit":       (*Processor).limitDirective,
		"holdconnect": (*Processor).holdconnectDirective,
		"directive":   (*Processor).directiveDirective,
		"xfer":        (*Processor).xferDirective,
		"status":      (*Processor).statusDirective,
		"quit":        (*Processor).quitDirective,
	}
	return p
}

// Process dispatches one directive line (leading '-' included, as read off
// the wire) and returns the CRLF-joined response text (no trailing CRLF).
// An unknown directive name yields wire code 400.
func (p *Processor) Process(sess SessionState, line string) string {
	args := strings.Fields(strings.TrimLeft(line, "-"))
	if len(args) == 0 {
		return rwerr.Message(400, "")
	}
	name := strings.ToLower(args[0])
	handler, ok := p.handlers[name]
	if !ok {
		return rwerr.Message(400, "")
	}
	return handler(p, sess, args[1:])
}

var rwhoisVersionExp = regexp.MustCompile(`(?i)^V-(\d+\.\d+)`)

func (p *Processor) rwhoisDirective(_ SessionState, args []string) string {
	if len(args) == 0 || !rwhoisVersionExp.MatchString(args[0]) {
		return rwerr.Message(338, "")
	}
	// Version is accepted but not enforced, matching the original's comment
	// that a real implementation would check it here.
	return p.Banner
}

func (p *Processor) limitDirective(sess SessionState, args []string) string {
	if len(args) == 0 {
		return rwerr.Message(338, "")
	}
	limit, err := strconv.Atoi(args[0])
	if err != nil {
		return rwerr.Message(338, "")
	}
	if limit > p.Limits.Max {
		limit = p.Limits.Max
	} else if limit < p.Limits.Min {
		limit = p.Limits.Min
	}
	sess.SetLimit(limit)
	return rwerr.OK
}

func (p *Processor) holdconnectDirective(sess SessionState, args []string) string {
	if len(args) == 0 {
		return rwerr.Message(338, "")
	}
	switch strings.ToLower(args[0]) {
	case "on":
		sess.SetHoldConnect(true)
	case "off":
		sess.SetHoldConnect(false)
	default:
		return rwerr.Message(338, "")
	}
	return rwerr.OK
}

func (p *Processor) directiveDirective(_ SessionState, args []string) string {
	if len(args) == 0 {
		names := make([]string, 0, len(p.handlers))
		for name := range p.handlers {
			names = append(names, name)
		}
		sort.Strings(names)

		var lines []string
		for _, name := range names {
			lines = append(lines, directiveListingLines(name)...)
		}
		lines = append(lines, rwerr.OK)
		return strings.Join(lines, "\r\n")
	}

	name := strings.ToLower(args[0])
	if _, ok := p.handlers[name]; !ok {
		return rwerr.Message(400, "")
	}
	lines := directiveListingLines(name)
	lines = append(lines, rwerr.OK)
	return strings.Join(lines, "\r\n")
}

// directiveListingLines renders the "%directive directive:<name>" /
// "%directive description:<desc>" pair for one directive name, preserving
// DirectiveProcessor.py's capitalize()-based description text verbatim.
func directiveListingLines(name string) []string {
	desc := strings.ToUpper(name[:1]) + name[1:]
	return []string{
		fmt.Sprintf("%%directive directive:%s", name),
		fmt.Sprintf("%%directive description:%s directive", desc),
	}
}

func (p *Processor) statusDirective(sess SessionState, _ []string) string {
	hc := "off"
	if sess.HoldConnect() {
		hc = "on"
	}
	lines := []string{
		fmt.Sprintf("%%status limit: %d", sess.Limit()),
		fmt.Sprintf("%%status holdconnect: %s", hc),
		"%status forward: off",
		fmt.Sprintf("%%status objects: %d", p.DB.ObjectCount()),
		"%status display: dump",
		"%status contact: N/A",
		rwerr.OK,
	}
	return strings.Join(lines, "\r\n")
}

func (p *Processor) quitDirective(sess SessionState, _ []string) string {
	sess.RequestQuit()
	return rwerr.OK
}

// xferDirective streams every object in aa (case-insensitively) matching an
// optional class and attribute-list restriction, wire-formatted with a
// "%xfer " prefix and a "%xfer " separator line after each object.
func (p *Processor) xferDirective(_ SessionState, args []string) string {
	if len(args) == 0 {
		return rwerr.Message(338, "")
	}
	aa := strings.ToLower(args[0])

	var class string
	var attrs []string
	for _, arg := range args[1:] {
		switch {
		case strings.HasPrefix(arg, "class="):
			class = strings.ToLower(strings.TrimPrefix(arg, "class="))
		case strings.HasPrefix(arg, "attribute="):
			if attr := strings.ToLower(strings.TrimPrefix(arg, "attribute=")); attr != "" {
				attrs = append(attrs, attr)
			}
		}
	}

	if !p.DB.IsAuthArea(aa) {
		return rwerr.Message(340, aa)
	}
	if class != "" && !p.DB.IsObjectClass(class) {
		return rwerr.Message(341, class)
	}
	for _, attr := range attrs {
		if !p.DB.IsAttribute(attr) {
			return rwerr.Message(342, attr)
		}
	}

	var lines []string
	for _, obj := range p.DB.ObjectIterator() {
		if strings.ToLower(obj.GetAttrValue("auth-area")) != aa {
			continue
		}
		if class != "" && strings.ToLower(obj.GetAttrValue("class-name")) != class {
			continue
		}
		var body string
		if len(attrs) > 0 {
			body = obj.AttrsToWireStr(attrs, "%xfer ")
		} else {
			body = obj.ToWireStr("%xfer ")
		}
		lines = append(lines, body, "%xfer ")
	}
	lines = append(lines, rwerr.OK)
	return strings.Join(lines, "\r\n")
}
