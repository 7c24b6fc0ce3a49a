// Package archive extracts the tarballs and zip files a github_release
// or download step fetches, backing the "extracts" half of spec §4.5's
// github_release step. Every format decodes into a tar.Reader (or, for
// zip, a zip.Reader) and is then unpacked through one path-traversal-
// and symlink-safe writer shared by every format.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// DetectFormat infers an archive format from a filename's suffix, for
// steps whose recipe left format unspecified or set to "auto".
func DetectFormat(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar.gz"
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return "tar.xz"
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"), strings.HasSuffix(lower, ".tbz"):
		return "tar.bz2"
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return "tar.zst"
	case strings.HasSuffix(lower, ".tar.lz"), strings.HasSuffix(lower, ".tlz"):
		return "tar.lz"
	case strings.HasSuffix(lower, ".tar"):
		return "tar"
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	default:
		return ""
	}
}

// Extract unpacks the archive at archivePath into destPath, stripping
// stripDirs leading path components from every entry. format must be
// one of the suffixes DetectFormat returns ("auto" is not accepted
// here — callers resolve it first so the chosen format is visible in
// the step result).
func Extract(archivePath, destPath, format string, stripDirs int) error {
	switch format {
	case "tar.gz", "tgz":
		return extractTarGz(archivePath, destPath, stripDirs)
	case "tar.xz", "txz":
		return extractTarXz(archivePath, destPath, stripDirs)
	case "tar.bz2", "tbz2", "tbz":
		return extractTarBz2(archivePath, destPath, stripDirs)
	case "tar.zst", "tzst":
		return extractTarZst(archivePath, destPath, stripDirs)
	case "tar.lz", "tlz":
		return extractTarLz(archivePath, destPath, stripDirs)
	case "tar":
		return extractTar(archivePath, destPath, stripDirs)
	case "zip":
		return extractZip(archivePath, destPath, stripDirs)
	default:
		return fmt.Errorf("archive: unsupported format %q", format)
	}
}

func extractTarGz(archivePath, destPath string, stripDirs int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open: %w", err)
	}
	defer f.Close()
	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("archive: gzip reader: %w", err)
	}
	defer gzr.Close()
	return extractTarReader(tar.NewReader(gzr), destPath, stripDirs)
}

func extractTarXz(archivePath, destPath string, stripDirs int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open: %w", err)
	}
	defer f.Close()
	xzr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("archive: xz reader: %w", err)
	}
	return extractTarReader(tar.NewReader(xzr), destPath, stripDirs)
}

func extractTarBz2(archivePath, destPath string, stripDirs int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open: %w", err)
	}
	defer f.Close()
	return extractTarReader(tar.NewReader(bzip2.NewReader(f)), destPath, stripDirs)
}

func extractTarZst(archivePath, destPath string, stripDirs int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open: %w", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("archive: zstd reader: %w", err)
	}
	defer zr.Close()
	return extractTarReader(tar.NewReader(zr), destPath, stripDirs)
}

func extractTarLz(archivePath, destPath string, stripDirs int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open: %w", err)
	}
	defer f.Close()
	lr, err := lzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("archive: lzip reader: %w", err)
	}
	return extractTarReader(tar.NewReader(lr), destPath, stripDirs)
}

func extractTar(archivePath, destPath string, stripDirs int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open: %w", err)
	}
	defer f.Close()
	return extractTarReader(tar.NewReader(f), destPath, stripDirs)
}

// isWithin reports whether target is destPath itself or a descendant
// of it, used to reject archive entries (and symlink targets) that
// would otherwise write outside the extraction directory.
func isWithin(target, destPath string) bool {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(destPath)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}

func validateSymlinkTarget(linkTarget, linkLocation, destPath string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("archive: absolute symlink targets are not allowed: %s -> %s", linkLocation, linkTarget)
	}
	resolved := filepath.Join(filepath.Dir(linkLocation), linkTarget)
	if !isWithin(resolved, destPath) {
		return fmt.Errorf("archive: symlink target escapes destination: %s -> %s", linkLocation, linkTarget)
	}
	return nil
}

func stripAndJoin(name string, destPath string, stripDirs int) (string, bool) {
	clean := strings.TrimPrefix(name, "./")
	parts := strings.Split(clean, "/")
	if len(parts) <= stripDirs {
		return "", false
	}
	rel := filepath.Join(parts[stripDirs:]...)
	return filepath.Join(destPath, rel), true
}

func extractTarReader(tr *tar.Reader, destPath string, stripDirs int) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("archive: read tar header: %w", err)
		}

		target, ok := stripAndJoin(header.Name, destPath, stripDirs)
		if !ok {
			continue
		}
		if !isWithin(target, destPath) {
			return fmt.Errorf("archive: entry escapes destination: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("archive: mkdir: %w", err)
			}
		case tar.TypeReg:
			if err := writeRegularFile(target, tr, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := validateSymlinkTarget(header.Linkname, target, destPath); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("archive: mkdir: %w", err)
			}
			if err := atomicSymlink(header.Linkname, target); err != nil {
				return fmt.Errorf("archive: symlink: %w", err)
			}
		}
	}
}

func writeRegularFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("archive: mkdir: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", target, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("archive: write %s: %w", target, err)
	}
	return nil
}

// atomicSymlink creates linkPath as a symlink to target via a
// rename, so a half-created symlink is never observable at linkPath.
func atomicSymlink(target, linkPath string) error {
	tmp := linkPath + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, linkPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func extractZip(archivePath, destPath string, stripDirs int) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, ok := stripAndJoin(f.Name, destPath, stripDirs)
		if !ok {
			continue
		}
		if !isWithin(target, destPath) {
			return fmt.Errorf("archive: zip entry escapes destination: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("archive: mkdir: %w", err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("archive: open zip entry %s: %w", f.Name, err)
		}
		err = writeRegularFile(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
