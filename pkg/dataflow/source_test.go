package dataflow

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	src := FileSource{Path: filepath.Join(dir, "wapm.lock")}

	if _, err := src.Read(); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Read(missing) = %v, want ErrNotExist", err)
	}

	for _, content := range []string{"first", "second"} {
		if err := src.Write([]byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got, err := src.Read()
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != content {
			t.Errorf("Read = %q, want %q", got, content)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestMemorySource(t *testing.T) {
	src := NewMemorySource(nil)
	if _, err := src.Read(); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Read(absent) = %v", err)
	}
	if src.Bytes() != nil {
		t.Error("Bytes of absent source should be nil")
	}

	if err := src.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	data, err := src.Read()
	if err != nil || string(data) != "x" {
		t.Errorf("Read = %q, %v", data, err)
	}
	data[0] = 'y'
	if string(src.Bytes()) != "x" {
		t.Error("Read returned shared storage")
	}
	if src.Writes() != 1 {
		t.Errorf("Writes = %d", src.Writes())
	}

	empty := NewMemorySource([]byte{})
	if _, err := empty.Read(); err != nil {
		t.Errorf("empty but present source: %v", err)
	}
}
