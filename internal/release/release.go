// Package release resolves GitHub release assets for the
// github_release step kind (spec §4.5): "resolves latest (or
// specified) release asset". It is a narrowed, GitHub-only cut of the
// teacher's general-purpose multi-registry version resolver — npm,
// PyPI, crates.io and the rest of that resolver's sources have no
// github_release equivalent in this module and are left out.
package release

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/google/go-github/v57/github"
)

// Asset is one downloadable file attached to a GitHub release.
type Asset struct {
	Name        string
	DownloadURL string
	Size        int
}

// Release is a resolved GitHub release: its tag plus the assets
// attached to it.
type Release struct {
	Tag    string
	Assets []Asset
}

// Resolver resolves GitHub releases through the GitHub REST API.
type Resolver struct {
	client        *github.Client
	authenticated bool
}

// New builds a Resolver. If the GITHUB_TOKEN environment variable is
// set, requests are authenticated, raising the rate limit from 60 to
// 5000 requests/hour — the same convention the teacher's version
// resolver uses.
func New() *Resolver {
	client := github.NewClient(nil)
	authenticated := false
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
		authenticated = true
	}
	return &Resolver{client: client, authenticated: authenticated}
}

// NewWithClient builds a Resolver around client directly, bypassing
// New's environment-based setup. Callers outside this package use it
// to point a Resolver at something other than the real GitHub API —
// in particular, stepexec's tests point it at an httptest server the
// same way this package's own tests do.
func NewWithClient(client *github.Client) *Resolver {
	return &Resolver{client: client}
}

// RateLimitError wraps a GitHub API rate-limit response with the
// fields a caller needs to report it usefully (and, for the
// unauthenticated case, to suggest setting GITHUB_TOKEN).
type RateLimitError struct {
	Limit         int
	Remaining     int
	Authenticated bool
	Err           error
}

func (e *RateLimitError) Error() string {
	if e.Authenticated {
		return fmt.Sprintf("github api rate limit exceeded (%d/%d remaining): %v", e.Remaining, e.Limit, e.Err)
	}
	return fmt.Sprintf("github api rate limit exceeded (%d/%d remaining, unauthenticated — set GITHUB_TOKEN for a higher limit): %v", e.Remaining, e.Limit, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

func (r *Resolver) wrapRateLimit(err error) error {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &RateLimitError{
			Limit:         rateLimitErr.Rate.Limit,
			Remaining:     rateLimitErr.Rate.Remaining,
			Authenticated: r.authenticated,
			Err:           err,
		}
	}
	return err
}

func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("release: invalid repo %q, want owner/repo", repo)
	}
	return parts[0], parts[1], nil
}

func toRelease(r *github.RepositoryRelease) *Release {
	out := &Release{Tag: r.GetTagName()}
	for _, a := range r.Assets {
		out.Assets = append(out.Assets, Asset{
			Name:        a.GetName(),
			DownloadURL: a.GetBrowserDownloadURL(),
			Size:        a.GetSize(),
		})
	}
	return out
}

// ResolveLatest fetches repo's most recent release. Unlike the
// teacher's resolver, it does not fall back to listing tags when a
// repository has no releases: tags carry no downloadable assets, so a
// tags-only fallback could never serve a github_release step's actual
// job of fetching a binary.
func (r *Resolver) ResolveLatest(ctx context.Context, repo string) (*Release, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	rel, _, err := r.client.Repositories.GetLatestRelease(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("release: get latest release for %s: %w", repo, r.wrapRateLimit(err))
	}
	return toRelease(rel), nil
}

// ResolveTag fetches repo's release tagged tag.
func (r *Resolver) ResolveTag(ctx context.Context, repo, tag string) (*Release, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	rel, _, err := r.client.Repositories.GetReleaseByTag(ctx, owner, name, tag)
	if err != nil {
		return nil, fmt.Errorf("release: get release %s@%s: %w", repo, tag, r.wrapRateLimit(err))
	}
	return toRelease(rel), nil
}

// PickAsset selects the release asset a github_release step downloads.
// An empty pattern only works when the release has exactly one asset;
// otherwise pattern is matched against each asset name as a
// path.Match glob, and exactly one match is required — an ambiguous or
// absent match is an error naming the release's actual asset names so
// a recipe author can tighten the pattern.
func PickAsset(rel *Release, pattern string) (Asset, error) {
	if pattern == "" {
		if len(rel.Assets) == 1 {
			return rel.Assets[0], nil
		}
		return Asset{}, fmt.Errorf("release: %s has %d assets, asset_pattern is required: %s", rel.Tag, len(rel.Assets), assetNames(rel))
	}
	var matches []Asset
	for _, a := range rel.Assets {
		ok, err := path.Match(pattern, a.Name)
		if err != nil {
			return Asset{}, fmt.Errorf("release: invalid asset_pattern %q: %w", pattern, err)
		}
		if ok {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 0:
		return Asset{}, fmt.Errorf("release: no asset in %s matches %q, available: %s", rel.Tag, pattern, assetNames(rel))
	case 1:
		return matches[0], nil
	default:
		return Asset{}, fmt.Errorf("release: asset_pattern %q matches %d assets in %s, want exactly 1", pattern, len(matches), rel.Tag)
	}
}

func assetNames(rel *Release) string {
	names := make([]string, len(rel.Assets))
	for i, a := range rel.Assets {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
