package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathCandidates(t *testing.T) {
	tests := []struct {
		name     string
		recorded string
		dir      string
		expected []string
	}{
		{"Root manifest", "_meta.lua", "calibre.koplugin", []string{"_meta.lua", "calibre.koplugin/_meta.lua"}},
		{"Nested manifest", "calibre.koplugin/_meta.lua", "calibre.koplugin", []string{"calibre.koplugin/_meta.lua", "_meta.lua"}},
		{"Untrimmed deep path", " /src/plugin/_meta.lua ", "x.koplugin", []string{"src/plugin/_meta.lua", "plugin/_meta.lua", "x.koplugin/_meta.lua", "_meta.lua"}},
		{"Directory recorded", "x.koplugin", "x.koplugin", []string{"x.koplugin", "x.koplugin/_meta.lua", "_meta.lua"}},
		{"Nothing recorded", "", "x.koplugin", []string{"x.koplugin/_meta.lua", "_meta.lua"}},
		{"Dot slash", "./_meta.lua", "", []string{"_meta.lua"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pathCandidates(tt.recorded, tt.dir))
		})
	}
}

func TestBranchCandidates(t *testing.T) {
	short := func(recorded string) []string {
		var out []string
		for _, ref := range branchCandidates(recorded) {
			out = append(out, ref.Short())
		}
		return out
	}

	assert.Equal(t, []string{"dev", "HEAD", "main", "master"}, short("dev"))
	assert.Equal(t, []string{"main", "HEAD", "master"}, short("main"))
	assert.Equal(t, []string{"HEAD", "main", "master"}, short(""))
	assert.Equal(t, []string{"HEAD", "main", "master"}, short("HEAD"))
	assert.Equal(t, []string{"release/2", "HEAD", "main", "master"}, short("refs/heads/release/2"))
}

func TestCandidateIteratorIsPathMajor(t *testing.T) {
	it := newCandidateIterator("a/_meta.lua", "", "dev")
	var got []string
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		got = append(got, c.Path+"@"+c.BranchName())
	}
	assert.Equal(t, []string{
		"a/_meta.lua@dev", "a/_meta.lua@HEAD", "a/_meta.lua@main", "a/_meta.lua@master",
		"_meta.lua@dev", "_meta.lua@HEAD", "_meta.lua@main", "_meta.lua@master",
	}, got)

	_, ok := it.Next()
	assert.False(t, ok, "an exhausted iterator stays exhausted")
}
