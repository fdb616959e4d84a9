// Package github implements remote.Remote on top of the GitHub REST API
// and raw content host.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/remote"
)

const (
	DefaultAPIURL = "https://api.github.com"
	DefaultRawURL = "https://raw.githubusercontent.com"
)

// Options configures a Client. Zero values fall back to the public GitHub
// hosts and a 30 second timeout.
type Options struct {
	APIURL     string
	RawURL     string
	Token      string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	UserAgent  string
}

// Client talks to GitHub. It is safe for concurrent use.
type Client struct {
	rest   *resty.Client
	rawURL string
}

var _ remote.Remote = (*Client)(nil)

// NewClient creates a client from opts.
func NewClient(opts Options) *Client {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.RawURL == "" {
		opts.RawURL = DefaultRawURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 2 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "appstore.koplugin/1.0"
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.APIURL, "/"))
	client.SetTimeout(opts.Timeout)
	client.SetRetryCount(opts.RetryCount)
	client.SetRetryWaitTime(opts.RetryWait)
	client.SetHeader("Accept", "application/vnd.github+json")
	client.SetHeader("User-Agent", opts.UserAgent)
	if opts.Token != "" {
		client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", opts.Token))
	}

	return &Client{
		rest:   client,
		rawURL: strings.TrimRight(opts.RawURL, "/"),
	}
}

type apiOwner struct {
	Login string `json:"login"`
}

type apiRepo struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	FullName      string   `json:"full_name"`
	Owner         apiOwner `json:"owner"`
	Description   string   `json:"description"`
	Language      string   `json:"language"`
	Homepage      string   `json:"homepage"`
	Topics        []string `json:"topics"`
	Stars         int      `json:"stargazers_count"`
	DefaultBranch string   `json:"default_branch"`
	PushedAt      string   `json:"pushed_at"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	Archived      bool     `json:"archived"`
}

type searchResponse struct {
	TotalCount int               `json:"total_count"`
	Items      []json.RawMessage `json:"items"`
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

type treeResponse struct {
	SHA       string      `json:"sha"`
	Tree      []treeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// parseTime reads an RFC 3339 timestamp. Missing or malformed values are
// the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// escapePath escapes each segment of a slash separated repository path.
func escapePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// get performs a GET and maps failures onto the error taxonomy.
func (c *Client) get(ctx context.Context, op, resource, target string, query map[string]string) ([]byte, error) {
	req := c.rest.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperr.FromContext(op, ctxErr)
		}
		return nil, &apperr.NetworkError{Op: op, Inner: err}
	}
	return checkResponse(op, resource, resp)
}

func checkResponse(op, resource string, resp *resty.Response) ([]byte, error) {
	status := resp.StatusCode()
	switch {
	case status == http.StatusNotFound:
		return nil, &apperr.NotFoundError{Resource: resource}
	case status == http.StatusForbidden || status == http.StatusTooManyRequests:
		limited := resp.Header().Get("X-RateLimit-Remaining") == "0" ||
			strings.Contains(strings.ToLower(resp.String()), "rate limit")
		return nil, &apperr.NetworkError{Op: op, StatusCode: status, RateLimited: limited}
	case status < 200 || status > 299:
		return nil, &apperr.NetworkError{
			Op:         op,
			StatusCode: status,
			Inner:      errors.New(strings.TrimSpace(truncate(resp.String(), 200))),
		}
	}
	return resp.Body(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// SearchCatalog runs a repository search ordered by stars.
func (c *Client) SearchCatalog(ctx context.Context, query string, page remote.Pagination) ([]models.CatalogEntry, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PerPage < 1 {
		page.PerPage = 30
	}
	params := map[string]string{
		"q":        query,
		"sort":     "stars",
		"order":    "desc",
		"per_page": strconv.Itoa(page.PerPage),
		"page":     strconv.Itoa(page.Page),
	}
	body, err := c.get(ctx, "search repositories", "search "+query, "/search/repositories", params)
	if err != nil {
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &apperr.DecodeError{What: "search results", Inner: err}
	}

	entries := make([]models.CatalogEntry, 0, len(result.Items))
	for _, raw := range result.Items {
		var repo apiRepo
		if err := json.Unmarshal(raw, &repo); err != nil {
			return nil, &apperr.DecodeError{What: "search result item", Inner: err}
		}
		entries = append(entries, toCatalogEntry(repo, raw))
	}
	return entries, nil
}

func toCatalogEntry(repo apiRepo, raw json.RawMessage) models.CatalogEntry {
	owner := repo.Owner.Login
	if owner == "" {
		owner, _, _ = strings.Cut(repo.FullName, "/")
	}
	topics := repo.Topics
	if topics == nil {
		topics = []string{}
	}
	return models.CatalogEntry{
		RemoteID:      repo.ID,
		Name:          repo.Name,
		Owner:         owner,
		FullName:      repo.FullName,
		Description:   repo.Description,
		Language:      repo.Language,
		Homepage:      repo.Homepage,
		Topics:        topics,
		Popularity:    max(repo.Stars, 0),
		DefaultBranch: repo.DefaultBranch,
		PushedAt:      unixOrZero(parseTime(repo.PushedAt)),
		CreatedAt:     unixOrZero(parseTime(repo.CreatedAt)),
		UpdatedAt:     unixOrZero(parseTime(repo.UpdatedAt)),
		RawMetadata:   raw,
	}
}

// FetchRepoMetadata returns metadata for owner/name.
func (c *Client) FetchRepoMetadata(ctx context.Context, owner, name string) (*models.RepoMetadata, error) {
	target := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(name))
	body, err := c.get(ctx, "fetch repository", "repository "+owner+"/"+name, target, nil)
	if err != nil {
		return nil, err
	}

	var repo apiRepo
	if err := json.Unmarshal(body, &repo); err != nil {
		return nil, &apperr.DecodeError{What: "repository " + owner + "/" + name, Inner: err}
	}
	return &models.RepoMetadata{
		RemoteID:      repo.ID,
		FullName:      repo.FullName,
		DefaultBranch: repo.DefaultBranch,
		PushedAt:      parseTime(repo.PushedAt),
		CreatedAt:     parseTime(repo.CreatedAt),
		UpdatedAt:     parseTime(repo.UpdatedAt),
		Popularity:    repo.Stars,
		Archived:      repo.Archived,
	}, nil
}

// FetchFileTree lists the blobs of branch. Download URLs point at the raw
// content host.
func (c *Client) FetchFileTree(ctx context.Context, owner, name, branch string) ([]models.RemoteFile, error) {
	target := fmt.Sprintf("/repos/%s/%s/git/trees/%s", url.PathEscape(owner), url.PathEscape(name), escapePath(branch))
	resource := fmt.Sprintf("tree %s/%s@%s", owner, name, branch)
	body, err := c.get(ctx, "fetch tree", resource, target, map[string]string{"recursive": "1"})
	if err != nil {
		return nil, err
	}

	var tree treeResponse
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, &apperr.DecodeError{What: resource, Inner: err}
	}
	// A truncated tree would make missing files look deleted upstream.
	if tree.Truncated {
		return nil, &apperr.DecodeError{What: resource + " (listing truncated by the remote)"}
	}

	files := make([]models.RemoteFile, 0, len(tree.Tree))
	for _, e := range tree.Tree {
		if e.Type != "blob" {
			continue
		}
		files = append(files, models.RemoteFile{
			Path:        e.Path,
			ContentSHA:  e.SHA,
			Size:        e.Size,
			DownloadURL: c.rawFileURL(owner, name, branch, e.Path),
		})
	}
	return files, nil
}

func (c *Client) rawFileURL(owner, name, branch, path string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", c.rawURL, url.PathEscape(owner), url.PathEscape(name), escapePath(branch), escapePath(path))
}

// FetchRawFile downloads one file from the raw content host.
func (c *Client) FetchRawFile(ctx context.Context, owner, name, branch, path string) ([]byte, error) {
	resource := fmt.Sprintf("file %s/%s@%s:%s", owner, name, branch, path)
	return c.get(ctx, "fetch file", resource, c.rawFileURL(owner, name, branch, path), nil)
}
