package engine

import (
	"errors"
	"testing"
)

type fakeBrowser struct {
	closed   int
	children []*fakeBrowser
	failInc  bool
}

func (b *fakeBrowser) Incognito() (*fakeBrowser, error) {
	if b.failInc {
		return nil, errors.New("target closed")
	}
	c := &fakeBrowser{}
	b.children = append(b.children, c)
	return c, nil
}

func (b *fakeBrowser) Close() error {
	b.closed++
	return nil
}

func TestOpenIncognitoKeepsParentOpen(t *testing.T) {
	parent := &fakeBrowser{}

	a, releaseA, err := openIncognito[*fakeBrowser](parent)
	if err != nil {
		t.Fatal(err)
	}
	b, releaseB, err := openIncognito[*fakeBrowser](parent)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("calls share one incognito context")
	}

	releaseA()
	if a.closed != 1 {
		t.Errorf("first context closed %d times, want 1", a.closed)
	}
	if b.closed != 0 {
		t.Errorf("second context closed by first release")
	}
	if parent.closed != 0 {
		t.Errorf("shared browser closed by release")
	}

	releaseB()
	if parent.closed != 0 || b.closed != 1 {
		t.Errorf("parent closed %d, second context closed %d", parent.closed, b.closed)
	}
}

func TestOpenIncognitoError(t *testing.T) {
	parent := &fakeBrowser{failInc: true}
	inc, release, err := openIncognito[*fakeBrowser](parent)
	if err == nil {
		t.Fatal("expected error")
	}
	if inc != nil || release != nil {
		t.Error("expected no context and no release on error")
	}
	if parent.closed != 0 {
		t.Error("shared browser closed on error")
	}
}
