package reconcile

import (
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// ManifestFile is the plugin manifest name.
const ManifestFile = "_meta.lua"

// Candidate is one place a plugin manifest may live upstream.
type Candidate struct {
	Path   string
	Branch plumbing.ReferenceName
}

// BranchName is the short branch name used in raw content URLs.
func (c Candidate) BranchName() string {
	return c.Branch.Short()
}

// branchCandidates orders the branches to try: the recorded one, then the
// remote default (HEAD), then main, then master.
func branchCandidates(recorded string) []plumbing.ReferenceName {
	refs := make([]plumbing.ReferenceName, 0, 4)
	seen := make(map[plumbing.ReferenceName]bool)
	add := func(ref plumbing.ReferenceName) {
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}

	if recorded = strings.TrimSpace(recorded); recorded != "" {
		if recorded == plumbing.HEAD.String() {
			add(plumbing.HEAD)
		} else {
			add(plumbing.NewBranchReferenceName(strings.TrimPrefix(recorded, "refs/heads/")))
		}
	}
	add(plumbing.HEAD)
	add(plumbing.NewBranchReferenceName("main"))
	add(plumbing.NewBranchReferenceName("master"))
	return refs
}

func cleanRepoPath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "./")
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// pathCandidates orders the manifest paths to try for a plugin installed
// in directory dir: the recorded path, the recorded path without its
// leading directory, a manifest beside the recorded path, a manifest
// under a directory named like the installed plugin, and finally a
// manifest at the repository root.
func pathCandidates(recorded, dir string) []string {
	paths := make([]string, 0, 5)
	seen := make(map[string]bool)
	add := func(p string) {
		p = cleanRepoPath(p)
		if p != "" && p != "." && !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	if rec := cleanRepoPath(recorded); rec != "" {
		add(rec)
		if _, rest, ok := strings.Cut(rec, "/"); ok {
			add(rest)
		}
		if path.Base(rec) != ManifestFile {
			add(path.Join(rec, ManifestFile))
		} else if d := path.Dir(rec); d != "." {
			add(path.Join(d, ManifestFile))
		}
	}
	if dir != "" {
		add(path.Join(dir, ManifestFile))
	}
	add(ManifestFile)
	return paths
}

// candidateIterator walks paths crossed with branches, path-major, so the
// recorded path is tried on every branch before any fallback path.
type candidateIterator struct {
	paths    []string
	branches []plumbing.ReferenceName
	next     int
}

func newCandidateIterator(recordedPath, dir, recordedBranch string) *candidateIterator {
	return &candidateIterator{
		paths:    pathCandidates(recordedPath, dir),
		branches: branchCandidates(recordedBranch),
	}
}

// Next returns the next candidate, or false once every pair was produced.
func (it *candidateIterator) Next() (Candidate, bool) {
	total := len(it.paths) * len(it.branches)
	if it.next >= total {
		return Candidate{}, false
	}
	i := it.next
	it.next++
	return Candidate{
		Path:   it.paths[i/len(it.branches)],
		Branch: it.branches[i%len(it.branches)],
	}, true
}
