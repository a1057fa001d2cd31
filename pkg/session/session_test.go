package session

import "testing"

type fakeAttrs struct {
	classes map[string]bool
	attrs   map[string]bool
}

func (f *fakeAttrs) IsObjectClass(n string) bool { return f.classes[n] }
func (f *fakeAttrs) IsAttribute(n string) bool   { return f.attrs[n] }

func TestNewUsesDefaultLimitAndHoldConnectOff(t *testing.T) {
	c := New(&fakeAttrs{}, 10)
	if c.Limit() != 10 {
		t.Errorf("got limit %d, want 10", c.Limit())
	}
	if c.HoldConnect() {
		t.Error("expected holdconnect to default false")
	}
	if c.ShouldQuit() {
		t.Error("expected quit to default false")
	}
}

func TestSetLimitAndHoldConnect(t *testing.T) {
	c := New(&fakeAttrs{}, 0)
	c.SetLimit(50)
	c.SetHoldConnect(true)
	if c.Limit() != 50 || !c.HoldConnect() {
		t.Errorf("got limit=%d holdconnect=%v", c.Limit(), c.HoldConnect())
	}
}

func TestRequestQuitSetsShouldQuit(t *testing.T) {
	c := New(&fakeAttrs{}, 0)
	c.RequestQuit()
	if !c.ShouldQuit() {
		t.Error("expected ShouldQuit true after RequestQuit")
	}
}

func TestParserIsLazilyCreatedAndCached(t *testing.T) {
	attrs := &fakeAttrs{classes: map[string]bool{"contact": true}, attrs: map[string]bool{"name": true}}
	c := New(attrs, 0)

	p1 := c.Parser()
	if p1 == nil {
		t.Fatal("expected non-nil parser")
	}
	if !p1.IsClass("contact") || !p1.IsAttr("name") {
		t.Error("expected parser wired to the session's Attrs")
	}

	p2 := c.Parser()
	if p1 != p2 {
		t.Error("expected the same parser instance across calls")
	}
}
