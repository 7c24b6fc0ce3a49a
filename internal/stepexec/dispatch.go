package stepexec

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsukumogami/provisor/internal/archive"
	"github.com/tsukumogami/provisor/internal/httputil"
	"github.com/tsukumogami/provisor/internal/pgp"
	"github.com/tsukumogami/provisor/internal/release"
	"github.com/tsukumogami/provisor/internal/resolver"
)

// Run executes one resolved plan step and returns its result. It never
// returns a Go error for a predictable failure (non-zero exit, missing
// binary, timeout) — those are all represented as Result.Status=failed
// with Result.Error set; a returned error here means the step
// description itself was invalid (unknown type, empty command), an
// invariant violation rather than a runtime failure.
func (e *Executor) Run(ctx context.Context, step resolver.Step) (Result, error) {
	e.Logger.Info("running step", "type", step.Type, "label", step.Label)

	switch step.Type {
	case "repo_setup", "post_install", "verify":
		return e.runBlocking(ctx, step), nil
	case "tool":
		return e.runStreaming(ctx, step), nil
	case "download":
		if url, ok := step.Metadata["url"].(string); ok && url != "" {
			return e.runDownload(ctx, step), nil
		}
		return e.runStreaming(ctx, step), nil
	case "github_release":
		return e.runGitHubRelease(ctx, step), nil
	case "build":
		return e.runBuild(ctx, step), nil
	case "packages":
		return e.runPackages(ctx, step), nil
	case "service":
		return e.runService(ctx, step), nil
	case "config":
		return e.runConfig(step), nil
	case "shell_config":
		return e.runShellConfig(step), nil
	case "source":
		return e.runBlocking(ctx, step), nil
	case "install", "cleanup":
		return e.runBlocking(ctx, step), nil
	case "notification":
		e.Logger.Info("notification", "message", step.Label)
		return Result{Status: StatusSucceeded}, nil
	default:
		return Result{}, fmt.Errorf("stepexec: unknown step type %q", step.Type)
	}
}

func (e *Executor) runBlocking(ctx context.Context, step resolver.Step) Result {
	if len(step.Command) == 0 {
		return Result{Status: StatusFailed, Error: fmt.Errorf("step %q has no command", step.Label)}
	}
	return e.runCommand(ctx, step.Command, runOptions{
		needsSudo: step.NeedsSudo,
		timeout:   timeoutFor(step, defaultTimeout),
		env:       mergeEnv(step.Env),
	})
}

func (e *Executor) runStreaming(ctx context.Context, step resolver.Step) Result {
	if len(step.Command) == 0 {
		return Result{Status: StatusFailed, Error: fmt.Errorf("step %q has no command", step.Label)}
	}
	stream := func(name, line string) {
		e.Logger.Debug("step output", "step", step.ID, "stream", name, "line", line)
	}
	return e.runCommand(ctx, step.Command, runOptions{
		needsSudo: step.NeedsSudo,
		timeout:   timeoutFor(step, defaultTimeout),
		stream:    stream,
		env:       mergeEnv(step.Env),
	})
}

func (e *Executor) runBuild(ctx context.Context, step resolver.Step) Result {
	if len(step.Command) == 0 {
		return Result{Status: StatusFailed, Error: fmt.Errorf("step %q has no command", step.Label)}
	}
	stream := func(name, line string) {
		e.Logger.Debug("build output", "step", step.ID, "stream", name, "line", line)
	}
	return e.runCommand(ctx, step.Command, runOptions{
		needsSudo: step.NeedsSudo,
		timeout:   timeoutFor(step, buildTimeout),
		stream:    stream,
		env:       mergeEnv(step.Env),
	})
}

// newSecureClient and newReleaseResolver are test seams: production
// code always uses the zero-value indirection (a hardened client per
// httputil, a Resolver against the real GitHub API), and tests
// override them to point at an httptest server instead, since neither
// Executor nor its Run signature has a place to thread that through.
var (
	newSecureClient = func(timeout time.Duration) *http.Client {
		return httputil.NewSecureClient(httputil.ClientOptions{Timeout: timeout})
	}
	newReleaseResolver = release.New
)

// runDownload fetches Metadata["url"] to Metadata["dest"] over a
// hardened HTTP client instead of shelling out to curl: a recipe step
// that declares a URL gets SSRF-safe redirect validation and no shell
// quoting surface, which matters for release archives whose URLs are
// partly templated from a recipe's version-detection output. Per
// spec §4.5, the fetched file's size and (if given) SHA-256 are
// verified; Metadata may additionally request a detached PGP
// signature check and/or archive extraction (shared with
// github_release via fetchAndProcess).
func (e *Executor) runDownload(ctx context.Context, step resolver.Step) Result {
	url, _ := step.Metadata["url"].(string)
	dest, _ := step.Metadata["dest"].(string)
	if url == "" || dest == "" {
		return Result{Status: StatusFailed, Error: fmt.Errorf("download step %q missing url/dest metadata", step.Label)}
	}
	return e.fetchAndProcess(ctx, step, url, dest)
}

// runGitHubRelease resolves Metadata["repo"] (owner/repo) to a GitHub
// release — Metadata["tag"] pins a specific release, otherwise the
// latest is used — selects the asset Metadata["asset_pattern"] names
// (a path.Match glob; omit it only when the release has exactly one
// asset), and downloads it to Metadata["dest"] through the same
// verify/extract pipeline runDownload uses.
func (e *Executor) runGitHubRelease(ctx context.Context, step resolver.Step) Result {
	repo, _ := step.Metadata["repo"].(string)
	dest, _ := step.Metadata["dest"].(string)
	if repo == "" || dest == "" {
		return Result{Status: StatusFailed, Error: fmt.Errorf("github_release step %q missing repo/dest metadata", step.Label)}
	}
	tag, _ := step.Metadata["tag"].(string)
	pattern, _ := step.Metadata["asset_pattern"].(string)

	resolv := newReleaseResolver()
	var rel *release.Release
	var err error
	if tag != "" {
		rel, err = resolv.ResolveTag(ctx, repo, tag)
	} else {
		rel, err = resolv.ResolveLatest(ctx, repo)
	}
	if err != nil {
		return Result{Status: StatusFailed, Error: fmt.Errorf("github_release step %q: %w", step.Label, err)}
	}
	asset, err := release.PickAsset(rel, pattern)
	if err != nil {
		return Result{Status: StatusFailed, Error: fmt.Errorf("github_release step %q: %w", step.Label, err)}
	}
	e.Logger.Debug("github_release resolved", "step", step.ID, "repo", repo, "tag", rel.Tag, "asset", asset.Name)
	return e.fetchAndProcess(ctx, step, asset.DownloadURL, dest)
}

// fetchAndProcess downloads url to dest, then applies whichever of
// Metadata's optional checks/transforms the step declares: SHA-256
// verification, detached PGP signature verification, and archive
// extraction. Shared by runDownload and runGitHubRelease since both
// land a file on disk the same way and support the same post-download
// metadata.
func (e *Executor) fetchAndProcess(ctx context.Context, step resolver.Step, url, dest string) Result {
	start := time.Now()
	if !strings.HasPrefix(url, "https://") {
		return Result{Status: StatusFailed, Error: fmt.Errorf("step %q: url must use https, got %s", step.Label, url)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Status: StatusFailed, Error: err}
	}
	client := newSecureClient(timeoutFor(step, defaultTimeout))
	resp, err := client.Do(req)
	if err != nil {
		return Result{Status: StatusFailed, Error: fmt.Errorf("step %q: %w", step.Label, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Status: StatusFailed, ExitCode: resp.StatusCode, Error: fmt.Errorf("step %q: unexpected status %s", step.Label, resp.Status)}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{Status: StatusFailed, Error: err}
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{Status: StatusFailed, Error: err}
	}
	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(resp.Body, hasher))
	f.Close()
	if err != nil {
		return Result{Status: StatusFailed, Error: fmt.Errorf("step %q: writing %s: %w", step.Label, dest, err)}
	}
	if resp.ContentLength > 0 && size != resp.ContentLength {
		return Result{Status: StatusFailed, Error: fmt.Errorf("step %q: downloaded %d bytes, Content-Length advertised %d", step.Label, size, resp.ContentLength)}
	}

	if want, ok := step.Metadata["sha256"].(string); ok && want != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, want) {
			return Result{Status: StatusFailed, Error: fmt.Errorf("step %q: sha256 mismatch: want %s, got %s", step.Label, want, got)}
		}
	}

	if err := e.verifySignature(ctx, step, dest); err != nil {
		return Result{Status: StatusFailed, Error: err}
	}

	if extract, _ := step.Metadata["extract"].(bool); extract {
		if err := e.extractDownload(step, dest); err != nil {
			return Result{Status: StatusFailed, Error: err}
		}
	}

	e.Logger.Debug("download completed", "step", step.ID, "url", url, "dest", dest)
	return Result{Status: StatusSucceeded, DurationMS: time.Since(start).Milliseconds()}
}

// verifySignature checks a detached PGP signature over the file at
// path when the step names all three of pgp_key_url,
// pgp_key_fingerprint and pgp_signature_url in Metadata; a step that
// names none of them skips the check entirely.
func (e *Executor) verifySignature(ctx context.Context, step resolver.Step, path string) error {
	keyURL, _ := step.Metadata["pgp_key_url"].(string)
	fingerprint, _ := step.Metadata["pgp_key_fingerprint"].(string)
	sigURL, _ := step.Metadata["pgp_signature_url"].(string)
	if keyURL == "" && fingerprint == "" && sigURL == "" {
		return nil
	}
	if keyURL == "" || fingerprint == "" || sigURL == "" {
		return fmt.Errorf("step %q: pgp_key_url, pgp_key_fingerprint and pgp_signature_url must all be set together", step.Label)
	}

	key, err := pgp.FetchKey(ctx, keyURL, fingerprint)
	if err != nil {
		return fmt.Errorf("step %q: %w", step.Label, err)
	}
	sig, err := pgp.FetchSignature(ctx, sigURL)
	if err != nil {
		return fmt.Errorf("step %q: %w", step.Label, err)
	}
	fileData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("step %q: reading %s for signature check: %w", step.Label, path, err)
	}
	if err := pgp.VerifyDetached(key, fileData, sig); err != nil {
		return fmt.Errorf("step %q: %w", step.Label, err)
	}
	e.Logger.Debug("pgp signature verified", "step", step.ID, "path", path)
	return nil
}

// extractDownload unpacks the archive at dest into Metadata["extract_dir"]
// (format auto-detected from dest's suffix unless Metadata["format"]
// overrides it), stripping Metadata["strip_dirs"] leading path
// components.
func (e *Executor) extractDownload(step resolver.Step, dest string) error {
	destDir, _ := step.Metadata["extract_dir"].(string)
	if destDir == "" {
		return fmt.Errorf("step %q: extract=true requires extract_dir metadata", step.Label)
	}
	format, _ := step.Metadata["format"].(string)
	if format == "" || format == "auto" {
		format = archive.DetectFormat(dest)
	}
	if format == "" {
		return fmt.Errorf("step %q: could not detect archive format for %s, set format explicitly", step.Label, dest)
	}
	stripDirs, _ := step.Metadata["strip_dirs"].(int)
	if err := archive.Extract(dest, destDir, format, stripDirs); err != nil {
		return fmt.Errorf("step %q: %w", step.Label, err)
	}
	e.Logger.Debug("extracted archive", "step", step.ID, "format", format, "dest", destDir)
	return nil
}

// runPackages builds the family's batched install invocation from
// step.Metadata["family"]/["packages"], as assembled by the resolver.
func (e *Executor) runPackages(ctx context.Context, step resolver.Step) Result {
	family, _ := step.Metadata["family"].(string)
	pkgs, _ := step.Metadata["packages"].([]string)
	if family == "" || len(pkgs) == 0 {
		return Result{Status: StatusFailed, Error: fmt.Errorf("packages step %q missing family/packages metadata", step.Label)}
	}
	argv, err := packageInstallCommand(family, pkgs)
	if err != nil {
		return Result{Status: StatusFailed, Error: err}
	}
	return e.runCommand(ctx, argv, runOptions{
		needsSudo: step.NeedsSudo,
		timeout:   timeoutFor(step, defaultTimeout),
		env:       mergeEnv(step.Env),
	})
}

// runConfig writes a config file at Metadata["path"] with
// Metadata["content"], a no-op when the file already holds that exact
// content (§4.5's idempotence requirement).
func (e *Executor) runConfig(step resolver.Step) Result {
	start := time.Now()
	path, _ := step.Metadata["path"].(string)
	content, _ := step.Metadata["content"].(string)
	if path == "" {
		return Result{Status: StatusFailed, Error: fmt.Errorf("config step %q missing path metadata", step.Label)}
	}
	if existing, err := os.ReadFile(path); err == nil && string(existing) == content {
		return Result{Status: StatusSucceeded, DurationMS: time.Since(start).Milliseconds()}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{Status: StatusFailed, Error: err}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Result{Status: StatusFailed, Error: err}
	}
	return Result{Status: StatusSucceeded, DurationMS: time.Since(start).Milliseconds()}
}

// shellConfigMarkerPrefix tags an appended rc line so re-running is a
// no-op: the marker, not the line content, is the idempotence key,
// since the appended value (e.g. a PATH export) may legitimately
// change between recipe versions.
const shellConfigMarkerPrefix = "# provisor:"

func (e *Executor) runShellConfig(step resolver.Step) Result {
	start := time.Now()
	rcPath, _ := step.Metadata["rc_path"].(string)
	marker, _ := step.Metadata["marker"].(string)
	line, _ := step.Metadata["line"].(string)
	if rcPath == "" || marker == "" {
		return Result{Status: StatusFailed, Error: fmt.Errorf("shell_config step %q missing rc_path/marker metadata", step.Label)}
	}
	markerLine := shellConfigMarkerPrefix + marker
	existing, _ := os.ReadFile(rcPath)
	if strings.Contains(string(existing), markerLine) {
		return Result{Status: StatusSucceeded, DurationMS: time.Since(start).Milliseconds()}
	}
	f, err := os.OpenFile(rcPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{Status: StatusFailed, Error: err}
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "\n%s\n%s\n", markerLine, line); err != nil {
		return Result{Status: StatusFailed, Error: err}
	}
	return Result{Status: StatusSucceeded, DurationMS: time.Since(start).Milliseconds()}
}

func timeoutFor(step resolver.Step, fallback time.Duration) time.Duration {
	if step.TimeoutMS > 0 {
		return time.Duration(step.TimeoutMS) * time.Millisecond
	}
	return fallback
}

func mergeEnv(stepEnv map[string]string) []string {
	if len(stepEnv) == 0 {
		return nil
	}
	env := os.Environ()
	for k, v := range stepEnv {
		env = append(env, k+"="+v)
	}
	return env
}
