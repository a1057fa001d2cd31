// Package session implements per-connection RWhois session state (spec C8):
// the response limit, hold-connect flag and lazily-created query parser
// original_source/rwhoisd/Session.py's Context holds for the life of one
// connection.
package session

import "rwhoisd/pkg/query"

// Attrs is the subset of store.Store a session's lazily-created parser
// needs to classify barewords (IsClass/IsAttr), kept narrow so this package
// does not import pkg/store directly.
type Attrs interface {
	IsObjectClass(name string) bool
	IsAttribute(name string) bool
}

// Context holds one connection's session state: the response limit,
// hold-connect flag, and a parser built on first use against db.
type Context struct {
	limit       int
	holdconnect bool
	quit        bool

	db     Attrs
	parser *query.Parser
}

// New returns a Context with the given default limit, matching
// Session.Context's config.default_limit/holdconnect=False defaults.
func New(db Attrs, defaultLimit int) *Context {
	return &Context{db: db, limit: defaultLimit}
}

func (c *Context) Limit() int        { return c.limit }
func (c *Context) SetLimit(n int)    { c.limit = n }
func (c *Context) HoldConnect() bool { return c.holdconnect }
func (c *Context) SetHoldConnect(b bool) { c.holdconnect = b }

// RequestQuit flags the session for closure after the current response is
// flushed, matching the -quit directive and "hold_connect false" behavior.
func (c *Context) RequestQuit() { c.quit = true }

// ShouldQuit reports whether the connection should close after the response
// currently being written is flushed.
func (c *Context) ShouldQuit() bool { return c.quit }

// Parser returns this session's query parser, building it against db on
// first use (Session.Context.queryparser is nil until first query, built
// via QueryParser.get_parser()).
func (c *Context) Parser() *query.Parser {
	if c.parser == nil {
		c.parser = &query.Parser{
			IsClass: c.db.IsObjectClass,
			IsAttr:  c.db.IsAttribute,
		}
	}
	return c.parser
}
