package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

func writeTarGz(t *testing.T, entries map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)
	for name, content := range entries {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	tw.Close()
	gzw.Close()
	return path
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]string{
		"lazygit_0.44_Linux_x86_64.tar.gz": "tar.gz",
		"foo.tgz":                          "tar.gz",
		"foo.tar.xz":                       "tar.xz",
		"foo.tar.bz2":                      "tar.bz2",
		"foo.tar.zst":                      "tar.zst",
		"foo.tar.lz":                       "tar.lz",
		"foo.tar":                          "tar",
		"foo.zip":                          "zip",
		"foo.exe":                          "",
	}
	for name, want := range cases {
		if got := DetectFormat(name); got != want {
			t.Errorf("DetectFormat(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestExtract_TarGzWritesFiles(t *testing.T) {
	archivePath := writeTarGz(t, map[string]string{
		"lazygit-v0.44/lazygit":       "binary contents",
		"lazygit-v0.44/README.md":     "read me",
	})
	dest := t.TempDir()
	if err := Extract(archivePath, dest, "tar.gz", 1); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "lazygit"))
	if err != nil {
		t.Fatalf("reading extracted binary: %v", err)
	}
	if string(data) != "binary contents" {
		t.Errorf("extracted content = %q, want %q", data, "binary contents")
	}
}

func TestExtract_RejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evil.tar.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)
	hdr := &tar.Header{Name: "../../etc/passwd", Mode: 0o644, Size: 4}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	tw.Write([]byte("evil"))
	tw.Close()
	gzw.Close()
	f.Close()

	dest := t.TempDir()
	if err := Extract(path, dest, "tar.gz", 0); err == nil {
		t.Fatal("expected an error for a path-traversal tar entry")
	}
}

func TestExtract_RejectsSymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evil.tar.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)
	hdr := &tar.Header{
		Name:     "link",
		Typeflag: tar.TypeSymlink,
		Linkname: "/etc/passwd",
		Mode:     0o777,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	tw.Close()
	gzw.Close()
	f.Close()

	dest := t.TempDir()
	if err := Extract(path, dest, "tar.gz", 0); err == nil {
		t.Fatal("expected an error for an absolute symlink target")
	}
}

func TestExtract_Zip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("tool/bin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("bin contents")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	zw.Close()
	f.Close()

	dest := t.TempDir()
	if err := Extract(path, dest, "zip", 1); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "bin"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if !bytes.Equal(data, []byte("bin contents")) {
		t.Errorf("extracted content = %q, want %q", data, "bin contents")
	}
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	if err := Extract("whatever", t.TempDir(), "rar", 0); err == nil {
		t.Fatal("expected an error for an unsupported format")
	}
}
