package cli

import (
	"path/filepath"
	"testing"
)

func TestProjectDir(t *testing.T) {
	dir := t.TempDir()
	c := &CLI{dir: dir}
	got, err := c.projectDir()
	if err != nil {
		t.Fatal(err)
	}
	if got != dir {
		t.Errorf("projectDir() = %q, want %q", got, dir)
	}

	c.dir = "."
	got, err = c.projectDir()
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("projectDir() = %q, want absolute path", got)
	}
}
