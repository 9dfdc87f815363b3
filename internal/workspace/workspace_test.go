package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_CreatesUniqueDirs(t *testing.T) {
	root := t.TempDir()

	ws1, err := New(root, false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ws2, err := New(root, false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if ws1.RootDir == ws2.RootDir {
		t.Fatalf("expected distinct scratch dirs, got %s twice", ws1.RootDir)
	}
	for _, ws := range []string{ws1.RootDir, ws2.RootDir} {
		if info, err := os.Stat(ws); err != nil || !info.IsDir() {
			t.Errorf("expected %s to exist as a directory", ws)
		}
	}
}

func TestCleanup_RemovesUnlessKept(t *testing.T) {
	root := t.TempDir()

	ws, err := New(root, false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	Cleanup(ws)
	if _, err := os.Stat(ws.RootDir); !os.IsNotExist(err) {
		t.Errorf("expected scratch dir to be removed, stat err=%v", err)
	}

	kept, err := New(root, true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	Cleanup(kept)
	if _, err := os.Stat(kept.RootDir); err != nil {
		t.Errorf("expected kept scratch dir to survive cleanup, got err=%v", err)
	}
}

func TestPopulate_CopiesFile(t *testing.T) {
	root := t.TempDir()
	ws, err := New(root, false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := filepath.Join(root, "source.tex")
	if err := os.WriteFile(src, []byte("content"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	dst, err := Populate(ws, src)
	if err != nil {
		t.Fatalf("Populate failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read populated file: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("expected copied content, got %q", data)
	}
}
