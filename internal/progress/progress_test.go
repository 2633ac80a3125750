package progress

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_DisabledForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	b := New(Options{Max: 3, Description: "rendering", Writer: &buf})

	if b.Enabled() {
		t.Fatal("expected bar to be disabled for a buffer")
	}
	for i := 0; i < 3; i++ {
		if err := b.Add(1); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	b.Describe("content_zh/intro.md")
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("disabled bar should not write, got %q", buf.String())
	}
}

func TestNew_DisabledForRegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	if New(Options{Max: 1, Writer: f}).Enabled() {
		t.Error("expected bar to be disabled for a regular file")
	}
}
