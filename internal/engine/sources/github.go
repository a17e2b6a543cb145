package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/Rishika-Mashetty/second-brain/internal/engine"
	"golang.org/x/time/rate"
)

const (
	githubFailed = "⚠️ Failed to summarize GitHub repository."

	defaultGitHubAPI = "https://api.github.com"
	defaultGitHubRaw = "https://raw.githubusercontent.com"

	maxSampledFiles  = 5
	sampleFileChars  = 4000
	treePromptChars  = 10000
	readmePromptChar = 8000
	snippetsChars    = 8000
	sampleSpacing    = 200 * time.Millisecond
)

var errInvalidRepoURL = errors.New("invalid GitHub repo URL")

// ownerRepoRe matches github.com/:owner/:repo followed by end, path or query.
var ownerRepoRe = regexp.MustCompile(`(?i)github\.com/([^/?#]+)/([^/?#]+)(?:$|[/?#])`)

// sampleExtRe selects text-like files worth showing the model.
var sampleExtRe = regexp.MustCompile(`\.(ts|js|py|md|go)$`)

// parseOwnerRepo extracts owner and repo from a github.com URL.
func parseOwnerRepo(u string) (owner, repo string, err error) {
	m := ownerRepoRe.FindStringSubmatch(u)
	if m == nil {
		return "", "", errInvalidRepoURL
	}
	owner, repo = m[1], strings.TrimSuffix(m[2], ".git")
	// Non-repo GitHub pages (github.com/topics/golang, github.com/orgs/x)
	for _, skip := range []string{"topics", "explore", "trending", "search", "settings", "notifications", "orgs", "marketplace"} {
		if strings.EqualFold(owner, skip) {
			return "", "", errInvalidRepoURL
		}
	}
	if repo == "" {
		return "", "", errInvalidRepoURL
	}
	return owner, repo, nil
}

// RepoMeta holds GitHub repository metadata from the REST API.
type RepoMeta struct {
	FullName      string   `json:"full_name"`
	Description   string   `json:"description"`
	Stars         int      `json:"stargazers_count"`
	Language      string   `json:"language"`
	Topics        []string `json:"topics"`
	DefaultBranch string   `json:"default_branch"`
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" or "tree"
}

type sampledFile struct {
	Path    string
	Snippet string
}

type repoEvidence struct {
	Meta    RepoMeta
	Tree    []treeEntry
	Readme  string
	Samples []sampledFile
}

// GitHubExtractor summarizes a repository from its REST metadata, file
// tree, README and a few sampled files.
type GitHubExtractor struct {
	gw      engine.Gateway
	fetch   *engine.Fetcher
	token   string
	apiBase string
	rawBase string
	spacing time.Duration
}

// Summarize returns a summary or the GitHub placeholder; it never errors.
func (g *GitHubExtractor) Summarize(ctx context.Context, rawURL string) (string, error) {
	out, err := g.summarize(ctx, rawURL)
	if err != nil {
		slog.Warn("github: extraction failed", slog.String("url", rawURL), slog.Any("error", err))
		return githubFailed, nil
	}
	return out, nil
}

func (g *GitHubExtractor) summarize(ctx context.Context, rawURL string) (string, error) {
	owner, repo, err := parseOwnerRepo(rawURL)
	if err != nil {
		return "", err
	}

	ev := repoEvidence{}
	if err := g.api(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), &ev.Meta); err != nil {
		return "", fmt.Errorf("repo meta: %w", err)
	}
	if ev.Meta.DefaultBranch == "" {
		ev.Meta.DefaultBranch = "main"
	}
	if ev.Meta.FullName == "" {
		ev.Meta.FullName = owner + "/" + repo
	}

	ev.Tree, err = g.fetchTree(ctx, owner, repo, ev.Meta.DefaultBranch)
	if err != nil {
		return "", fmt.Errorf("repo tree: %w", err)
	}
	ev.Readme = g.fetchReadme(ctx, owner, repo, ev.Meta.DefaultBranch)
	ev.Samples, err = g.sampleFiles(ctx, owner, repo, ev.Meta.DefaultBranch, ev.Tree)
	if err != nil {
		return "", err
	}

	slog.Info("github: evidence collected",
		slog.String("repo", ev.Meta.FullName),
		slog.Int("entries", len(ev.Tree)),
		slog.Int("samples", len(ev.Samples)),
		slog.Bool("readme", ev.Readme != ""))

	return g.gw.Generate(ctx, githubInstruction, engine.TextPart(ev.prompt()))
}

func (g *GitHubExtractor) headers(accept string) map[string]string {
	h := map[string]string{"Accept": accept}
	if g.token != "" {
		h["Authorization"] = "Bearer " + g.token
	}
	return h
}

func (g *GitHubExtractor) api(ctx context.Context, path string, v any) error {
	return g.fetch.GetJSON(ctx, g.apiBase+path, g.headers("application/vnd.github+json"), v)
}

// fetchTree resolves branch → commit → tree SHA and lists the tree recursively.
func (g *GitHubExtractor) fetchTree(ctx context.Context, owner, repo, branch string) ([]treeEntry, error) {
	base := fmt.Sprintf("/repos/%s/%s/git", owner, repo)

	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := g.api(ctx, base+"/refs/heads/"+branch, &ref); err != nil {
		return nil, err
	}
	if ref.Object.SHA == "" {
		return nil, errors.New("could not resolve branch SHA")
	}

	var commit struct {
		Tree struct {
			SHA string `json:"sha"`
		} `json:"tree"`
	}
	if err := g.api(ctx, base+"/commits/"+ref.Object.SHA, &commit); err != nil {
		return nil, err
	}
	if commit.Tree.SHA == "" {
		return nil, errors.New("could not resolve tree SHA")
	}

	var tree struct {
		Tree      []treeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	if err := g.api(ctx, base+"/trees/"+commit.Tree.SHA+"?recursive=1", &tree); err != nil {
		return nil, err
	}
	if tree.Truncated {
		slog.Debug("github: tree truncated by API", slog.String("repo", owner+"/"+repo))
	}
	return tree.Tree, nil
}

// fetchReadme tries raw README.md, raw README, then the rendered /readme
// endpoint converted to Markdown. Absence yields "".
func (g *GitHubExtractor) fetchReadme(ctx context.Context, owner, repo, branch string) string {
	for _, name := range []string{"README.md", "README"} {
		body, err := g.fetch.Get(ctx, g.rawURL(owner, repo, branch, name), nil, 0)
		if err == nil && strings.TrimSpace(string(body)) != "" {
			return string(body)
		}
	}

	body, err := g.fetch.Get(ctx, fmt.Sprintf("%s/repos/%s/%s/readme", g.apiBase, owner, repo),
		g.headers("application/vnd.github.html+json"), 0)
	if err != nil {
		if !engine.IsNotFound(err) {
			slog.Debug("github: readme endpoint failed", slog.Any("error", err))
		}
		return ""
	}
	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return engine.CleanHTML(string(body))
	}
	return md
}

// sampleFiles fetches up to maxSampledFiles text-like blobs one at a time,
// spaced by the extractor's limiter. Unreadable files give empty snippets.
func (g *GitHubExtractor) sampleFiles(ctx context.Context, owner, repo, branch string, tree []treeEntry) ([]sampledFile, error) {
	var picked []treeEntry
	for _, t := range tree {
		if t.Type == "blob" && sampleExtRe.MatchString(t.Path) {
			picked = append(picked, t)
			if len(picked) == maxSampledFiles {
				break
			}
		}
	}

	limiter := rate.NewLimiter(rate.Every(g.spacing), 1)
	samples := make([]sampledFile, 0, len(picked))
	for _, f := range picked {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := g.fetch.Get(ctx, g.rawURL(owner, repo, branch, f.Path), nil, 0)
		if err != nil {
			slog.Debug("github: sample fetch failed", slog.String("path", f.Path), slog.Any("error", err))
		}
		samples = append(samples, sampledFile{Path: f.Path, Snippet: engine.Clamp(string(body), sampleFileChars)})
	}
	return samples, nil
}

func (g *GitHubExtractor) rawURL(owner, repo, branch, path string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", g.rawBase, owner, repo, branch, path)
}

// renderTree draws sorted paths indented two spaces per depth, marking
// directories and files.
func renderTree(tree []treeEntry) string {
	dirs := make(map[string]bool, len(tree))
	paths := make([]string, 0, len(tree))
	for _, t := range tree {
		if t.Type == "tree" {
			dirs[t.Path] = true
		}
		paths = append(paths, t.Path)
	}
	sort.Strings(paths)

	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		marker := "📄"
		if dirs[p] {
			marker = "📁"
		}
		lines = append(lines, strings.Repeat("  ", strings.Count(p, "/"))+marker+" "+p)
	}
	return strings.Join(lines, "\n")
}

const githubInstruction = `You are a senior developer summarizing a GitHub repository.
Provide:
1. A short 2-3 line summary of the repo purpose and functionality.
2. The key technologies and architecture insights.
3. The main files or directories and why they matter.`

func (ev repoEvidence) prompt() string {
	var snippets []string
	for _, s := range ev.Samples {
		snippets = append(snippets, "---\n# "+s.Path+"\n"+s.Snippet)
	}

	var sb strings.Builder
	sb.WriteString("=== Repo Info ===\n")
	fmt.Fprintf(&sb, "%s (%d stars)\n", ev.Meta.FullName, ev.Meta.Stars)
	if ev.Meta.Language != "" {
		sb.WriteString("Language: " + ev.Meta.Language + "\n")
	}
	if len(ev.Meta.Topics) > 0 {
		sb.WriteString("Topics: " + strings.Join(ev.Meta.Topics, ", ") + "\n")
	}
	sb.WriteString(engine.Clamp(ev.Meta.Description, 1000) + "\n\n")
	sb.WriteString("=== File Tree (partial) ===\n")
	sb.WriteString(engine.Clamp(renderTree(ev.Tree), treePromptChars) + "\n\n")
	sb.WriteString("=== README (partial) ===\n")
	sb.WriteString(engine.Clamp(ev.Readme, readmePromptChar) + "\n\n")
	sb.WriteString("=== Code Samples (partial) ===\n")
	sb.WriteString(engine.Clamp(strings.Join(snippets, "\n\n"), snippetsChars))
	return sb.String()
}
