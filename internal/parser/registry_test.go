package parser

import (
	"context"
	"errors"
	"testing"
)

type mockLocator struct {
	lang  string
	exts  []string
	fn    *Function
	calls int
	last  int
}

func (m *mockLocator) Language() string {
	return m.lang
}

func (m *mockLocator) Extensions() []string {
	return m.exts
}

func (m *mockLocator) EnclosingFunction(_ context.Context, _ string, _ []byte, offset int) (*Function, error) {
	m.calls++
	m.last = offset
	if m.fn == nil {
		return nil, nil
	}
	fn := *m.fn
	return &fn, nil
}

func TestRegistryLocatorForFile(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockLocator{lang: "mock", exts: []string{".mock"}})

	l, ok := r.LocatorForFile("demo.MOCK")
	if !ok {
		t.Fatalf("expected locator for .MOCK extension")
	}
	if l.Language() != "mock" {
		t.Fatalf("expected language mock, got %s", l.Language())
	}
	if _, ok := r.LocatorForFile("README.md"); ok {
		t.Fatalf("expected no locator for .md")
	}
}

func TestLocateWithoutCapabilityReturnsErrNoLocator(t *testing.T) {
	r := NewRegistry()

	_, err := r.Locate(context.Background(), "a.js", []byte("function a() {}"), 0)
	if !errors.Is(err, ErrNoLocator) {
		t.Fatalf("expected ErrNoLocator, got %v", err)
	}
}

func TestLocateSubstitutesAnonymousName(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockLocator{lang: "mock", exts: []string{".mock"}, fn: &Function{Name: "  "}})

	fn, err := r.Locate(context.Background(), "a.mock", []byte("body"), 1)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if fn.Name != AnonymousName {
		t.Fatalf("expected %q, got %q", AnonymousName, fn.Name)
	}
	if fn.Language != "mock" {
		t.Fatalf("expected language to default to locator language, got %q", fn.Language)
	}
	if !fn.IsAnonymous() {
		t.Fatalf("expected substituted name to report anonymous")
	}
}

func TestFunctionSpanHelpers(t *testing.T) {
	fn := &Function{Name: "foo", Start: 10, End: 20}
	if fn.IsAnonymous() {
		t.Fatalf("expected named function not to be anonymous")
	}
	for offset, want := range map[int]bool{9: false, 10: true, 19: true, 20: false} {
		if got := fn.Contains(offset); got != want {
			t.Fatalf("Contains(%d) = %v, want %v", offset, got, want)
		}
	}

	var missing *Function
	if !missing.IsAnonymous() || missing.Contains(0) {
		t.Fatalf("expected nil function to be anonymous and empty")
	}
}

func TestLocateClampsOffsetAndRejectsNegative(t *testing.T) {
	m := &mockLocator{lang: "mock", exts: []string{".mock"}}
	r := NewRegistry()
	r.Register(m)

	if _, err := r.Locate(context.Background(), "a.mock", []byte("abc"), 99); err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if m.last != 2 {
		t.Fatalf("expected offset clamped to 2, got %d", m.last)
	}

	if _, err := r.Locate(context.Background(), "a.mock", []byte("abc"), -1); !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("expected ErrInvalidOffset, got %v", err)
	}
	if m.calls != 1 {
		t.Fatalf("expected locator not to be called for a negative offset, got %d calls", m.calls)
	}
}

func TestOffsetForPosition(t *testing.T) {
	content := []byte("line one\n  line two\nthree")

	tests := []struct {
		line, col int
		want      int
	}{
		{1, 1, 0},
		{1, 6, 5},
		{2, 0, 11},
		{2, 3, 11},
		{3, 1, 20},
	}
	for _, tt := range tests {
		got, err := OffsetForPosition(content, tt.line, tt.col)
		if err != nil {
			t.Fatalf("OffsetForPosition(%d, %d) failed: %v", tt.line, tt.col, err)
		}
		if got != tt.want {
			t.Fatalf("OffsetForPosition(%d, %d) = %d, want %d", tt.line, tt.col, got, tt.want)
		}
	}

	if _, err := OffsetForPosition(content, 9, 1); !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("expected ErrInvalidOffset for missing line, got %v", err)
	}
	if _, err := OffsetForPosition(content, 1, 40); !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("expected ErrInvalidOffset for long column, got %v", err)
	}
}
