// Package fetch implements the Fetcher: resolving a CLI-provided image
// reference (a bare "image[:tag]", or a local tarball/SquashFS path) to a
// local archive path, downloading it from the Docker Registry or a GitHub
// recipe index when it isn't local already.
package fetch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"strings"

	"github.com/google/go-github/v27/github"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"
)

const (
	defaultTag        = "latest"
	dockerAuthURL     = "https://auth.docker.io/token"
	dockerRegistryURL = "https://registry-1.docker.io"
	recipeIndexOwner  = "docker-library"
	recipeIndexRepo   = "official-images"
)

// Fetcher resolves image references to local archive paths. AuthURL and
// RegistryURL default to the real Docker Registry endpoints; tests
// override them to point at an httptest.Server.
type Fetcher struct {
	HTTPClient  *http.Client
	GitHub      *github.Client
	AuthURL     string
	RegistryURL string
}

// New returns a Fetcher. If the GITHUB_TOKEN environment variable is set,
// recipe-index lookups authenticate with it (raising GitHub's anonymous
// rate limit); otherwise they run unauthenticated.
func New() *Fetcher {
	gh := github.NewClient(nil)
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok})
		gh = github.NewClient(oauth2.NewClient(context.Background(), ts))
	}
	return &Fetcher{
		HTTPClient:  http.DefaultClient,
		GitHub:      gh,
		AuthURL:     dockerAuthURL,
		RegistryURL: dockerRegistryURL,
	}
}

// Resolve implements SPEC_FULL.md §4.10: if ref names an existing local
// file, it is returned as-is with a no-op cleanup. Otherwise ref is parsed
// as repository[:tag] and resolved first against the Docker Registry, then
// against the GitHub-hosted recipe index. The returned cleanup removes any
// file Resolve itself downloaded.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (path string, cleanup func(), err error) {
	if info, statErr := os.Stat(ref); statErr == nil && !info.IsDir() {
		return ref, func() {}, nil
	}

	repo, tag := splitRef(ref)

	path, err = f.resolveRegistry(ctx, repo, tag)
	if err == nil {
		return path, cleanupFunc(path), nil
	}
	registryErr := err

	path, err = f.resolveRecipeIndex(ctx, repo, tag)
	if err != nil {
		return "", nil, xerrors.Errorf("resolving %s: registry: %v; recipe index: %w", ref, registryErr, err)
	}
	return path, cleanupFunc(path), nil
}

func cleanupFunc(path string) func() {
	return func() { os.Remove(path) }
}

func splitRef(ref string) (repo, tag string) {
	if idx := strings.IndexByte(ref, ':'); idx >= 0 {
		return ref[:idx], ref[idx+1:]
	}
	return ref, defaultTag
}

// --- Docker Registry v2 ---

type tokenResponse struct {
	Token string `json:"token"`
}

type manifest struct {
	Layers []struct {
		MediaType string `json:"mediaType"`
		Size      int64  `json:"size"`
		Digest    string `json:"digest"`
	} `json:"layers"`
}

func (f *Fetcher) resolveRegistry(ctx context.Context, repo, tag string) (string, error) {
	qualified := repo
	if !strings.Contains(repo, "/") {
		qualified = "library/" + repo
	}

	token, err := f.dockerToken(ctx, qualified)
	if err != nil {
		return "", xerrors.Errorf("obtaining registry token: %w", err)
	}

	man, err := f.dockerManifest(ctx, qualified, tag, token)
	if err != nil {
		return "", xerrors.Errorf("fetching manifest: %w", err)
	}
	if len(man.Layers) == 0 {
		return "", fmt.Errorf("manifest for %s:%s has no layers", qualified, tag)
	}

	// The rootfs is the smallest layer; a real multi-layer image may add
	// larger layers on top, but the base distro layer is reliably the
	// smallest one present.
	smallest := man.Layers[0]
	for _, l := range man.Layers[1:] {
		if l.Size < smallest.Size {
			smallest = l
		}
	}

	return f.downloadBlob(ctx, qualified, smallest.Digest, token, fmt.Sprintf("rootfs_%s_%s", repo, tag))
}

func (f *Fetcher) dockerToken(ctx context.Context, qualified string) (string, error) {
	url := fmt.Sprintf("%s?service=registry.docker.io&scope=repository:%s:pull", f.AuthURL, qualified)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: HTTP %s", url, resp.Status)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	return tr.Token, nil
}

func (f *Fetcher) dockerManifest(ctx context.Context, qualified, tag, token string) (*manifest, error) {
	url := fmt.Sprintf("%s/v2/%s/manifests/%s", f.RegistryURL, qualified, tag)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.docker.distribution.manifest.v2+json")
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %s", url, resp.Status)
	}
	var man manifest
	if err := json.NewDecoder(resp.Body).Decode(&man); err != nil {
		return nil, err
	}
	return &man, nil
}

func (f *Fetcher) downloadBlob(ctx context.Context, qualified, digest, token, fnamePrefix string) (string, error) {
	url := fmt.Sprintf("%s/v2/%s/blobs/%s", f.RegistryURL, qualified, digest)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: HTTP %s", url, resp.Status)
	}
	return streamToTempFile(fnamePrefix+".tar.gz", resp.Body)
}

// --- GitHub recipe index ---

// resolveRecipeIndex mirrors get.py: fetch docker-library/official-images's
// library/<repo> file, locate the Dockerfile URL for tag, fetch it, and
// pull the tarball named in its "ADD <file> /" rootfs line.
func (f *Fetcher) resolveRecipeIndex(ctx context.Context, repo, tag string) (string, error) {
	content, _, resp, err := f.GitHub.Repositories.GetContents(ctx, recipeIndexOwner, recipeIndexRepo, "library/"+repo, nil)
	if err != nil {
		return "", xerrors.Errorf("fetching recipe index entry: %w", err)
	}
	defer resp.Body.Close()
	raw, err := content.GetContent()
	if err != nil {
		return "", err
	}

	dockerfileURL, err := findDockerfileURL(raw, tag)
	if err != nil {
		return "", err
	}

	dockerfile, err := f.fetchText(ctx, dockerfileURL)
	if err != nil {
		return "", xerrors.Errorf("fetching Dockerfile: %w", err)
	}

	tarURL, err := findRootfsAddLine(dockerfile, dockerfileURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", tarURL, nil)
	if err != nil {
		return "", err
	}
	resp2, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: HTTP %s", tarURL, resp2.Status)
	}

	ext := tarURL[strings.Index(tarURL, ".tar"):]
	return streamToTempFile(fmt.Sprintf("rootfs_%s_%s%s", repo, tag, ext), resp2.Body)
}

// findDockerfileURL implements get.py's two index-file shapes: the
// simplistic "tag: git://host/repo.git@commit path" form, and the
// key-value "GitRepo/Tags/GitCommit/Directory" form separated by blank
// lines.
func findDockerfileURL(raw, tag string) (string, error) {
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, tag+": ") {
			continue
		}
		rest := strings.TrimPrefix(line, tag+": ")
		parts := strings.SplitN(rest, " ", 2)
		if len(parts) != 2 {
			continue
		}
		refParts := strings.SplitN(parts[0], "@", 2)
		if len(refParts) != 2 {
			continue
		}
		repoURL, commit, path := refParts[0], refParts[1], parts[1]
		idx := strings.Index(repoURL, "github.com/")
		if idx < 0 {
			continue
		}
		repoPath := strings.TrimSuffix(repoURL[idx+len("github.com/"):], ".git")
		return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/Dockerfile", repoPath, commit, path), nil
	}

	var repo, path, commit string
	var tags []string
	flush := func() bool { return repo != "" && path != "" && commit != "" && containsTag(tags, tag) }

	sc = bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if flush() {
				return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/Dockerfile", repo, commit, path), nil
			}
			repo, path, commit, tags = "", "", "", nil
			continue
		}
		kv := strings.SplitN(line, ": ", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "GitRepo":
			idx := strings.Index(kv[1], "github.com/")
			if idx >= 0 {
				repo = strings.TrimSuffix(kv[1][idx+len("github.com/"):], ".git")
			}
		case "Tags":
			tags = strings.Split(kv[1], ", ")
		case "GitCommit":
			commit = kv[1]
		case "Directory":
			path = kv[1]
		}
	}
	if flush() {
		return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/Dockerfile", repo, commit, path), nil
	}

	return "", fmt.Errorf("no recipe index entry for tag %q", tag)
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// findRootfsAddLine scans a Dockerfile's lines for "ADD <archive> /", the
// recipe's rootfs-tarball directive, and resolves it against dockerfileURL's
// directory.
func findRootfsAddLine(dockerfile, dockerfileURL string) (string, error) {
	base := dockerfileURL[:strings.LastIndex(dockerfileURL, "/")+1]
	sc := bufio.NewScanner(strings.NewReader(dockerfile))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 3 || !strings.EqualFold(fields[0], "ADD") || fields[2] != "/" {
			continue
		}
		return base + fields[1], nil
	}
	return "", fmt.Errorf("no rootfs ADD directive found in %s", dockerfileURL)
}

func (f *Fetcher) fetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: HTTP %s", url, resp.Status)
	}
	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// streamToTempFile copies src into a new temp file named namePrefix plus a
// random suffix in the current working directory, matching get.py's behavior of leaving the
// fetched archive alongside the binary rather than under $TMPDIR.
func streamToTempFile(namePrefix string, src io.Reader) (string, error) {
	f, err := ioutil.TempFile(".", namePrefix+"-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
