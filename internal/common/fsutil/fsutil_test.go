package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	// Set a deterministic HOME for the duration of this test so we never skip.
	origHome, hadHome := os.LookupEnv("HOME")
	origUserProfile, hadUserProfile := os.LookupEnv("USERPROFILE")
	t.Cleanup(func() {
		if hadHome {
			_ = os.Setenv("HOME", origHome)
		} else {
			_ = os.Unsetenv("HOME")
		}
		if hadUserProfile {
			_ = os.Setenv("USERPROFILE", origUserProfile)
		} else {
			_ = os.Unsetenv("USERPROFILE")
		}
	})

	home := t.TempDir()
	// Configure both env vars for cross-platform behavior of os.UserHomeDir.
	_ = os.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		_ = os.Setenv("USERPROFILE", home)
	}
	// raw path unaffected
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// empty path
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// ~ expansion
	p, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != home {
		t.Fatalf("expected %q, got %q", home, p)
	}
	// ~/subdir
	sub := "test-sub"
	exp, err := ExpandHome("~/" + sub)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if runtime.GOOS == "windows" {
		if filepath.Base(exp) != sub {
			t.Fatalf("unexpected expanded path: %q", exp)
		}
	} else {
		expected := filepath.Join(home, sub)
		if exp != expected {
			t.Fatalf("expected %q, got %q", expected, exp)
		}
	}
}

func TestFindFiles(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string, n int) {
		t.Helper()
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, make([]byte, n), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	mustWrite("a.safetensors", 10)
	mustWrite("nested/b.PT", 20)
	mustWrite("nested/deeper/c.bin", 30)
	mustWrite("readme.txt", 1)

	got, err := FindFiles(root, ".safetensors", ".pt", ".bin")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 files, got %d: %+v", len(got), got)
	}
	rels := map[string]int64{}
	for _, f := range got {
		rels[filepath.ToSlash(f.Rel)] = f.Size
		if !filepath.IsAbs(f.Path) {
			t.Fatalf("path not absolute: %q", f.Path)
		}
	}
	if rels["nested/b.PT"] != 20 || rels["nested/deeper/c.bin"] != 30 || rels["a.safetensors"] != 10 {
		t.Fatalf("unexpected files: %v", rels)
	}
}

func TestFindFiles_MissingRoot(t *testing.T) {
	got, err := FindFiles(filepath.Join(t.TempDir(), "nope"), ".bin")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestPathExistsAndIsDir(t *testing.T) {
	d := t.TempDir()
	if !PathExists(d) || !IsDir(d) {
		t.Fatalf("temp dir should exist and be a dir")
	}
	f := filepath.Join(d, "f")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !PathExists(f) || IsDir(f) {
		t.Fatalf("file checks wrong")
	}
	if PathExists(filepath.Join(d, "missing")) {
		t.Fatalf("missing path reported as existing")
	}
}
