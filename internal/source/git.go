package source

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
)

// GitRevision reads scripts from one revision of a git repository without
// touching any working tree.
type GitRevision struct {
	// Repo is a local repository path or a remote URL.
	Repo string
	// Rev is a tag, branch or commit hash; empty means HEAD.
	Rev string
	// Dir limits the scripts to a slash-separated subdirectory.
	Dir string

	repo *git.Repository
}

func NewGitRevision(repo, rev, dir string) *GitRevision {
	return &GitRevision{Repo: repo, Rev: rev, Dir: dir}
}

// NewGitRevisionOf reads from an already opened repository.
func NewGitRevisionOf(repo *git.Repository, rev, dir string) *GitRevision {
	return &GitRevision{Repo: "<memory>", Rev: rev, Dir: dir, repo: repo}
}

func (g *GitRevision) String() string {
	rev := g.Rev
	if rev == "" {
		rev = "HEAD"
	}
	return g.Repo + "@" + rev
}

// Scripts returns every script in the revision's tree, in path order.
func (g *GitRevision) Scripts(ctx context.Context) ([]Script, error) {
	repo, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	hash, err := resolveRevision(repo, g.Rev)
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %w", hash, err)
	}
	if dir := strings.Trim(path.Clean("/"+g.Dir), "/"); dir != "" {
		if tree, err = tree.Tree(dir); err != nil {
			return nil, fmt.Errorf("directory %s not found at %s: %w", dir, g, err)
		}
	}

	var out []Script
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !isScript(path.Base(f.Name)) || hidden(f.Name) {
			return nil
		}
		text, err := f.Contents()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		out = append(out, Script{Path: f.Name, Text: text})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortScripts(out)
	return out, nil
}

func (g *GitRevision) open(ctx context.Context) (*git.Repository, error) {
	if g.repo != nil {
		return g.repo, nil
	}
	if isRemote(g.Repo) {
		repo, err := git.CloneContext(ctx, memory.NewStorage(), memfs.New(), &git.CloneOptions{
			URL:        g.Repo,
			Tags:       git.AllTags,
			NoCheckout: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to clone repository %s: %w", g.Repo, err)
		}
		return repo, nil
	}
	repo, err := git.PlainOpenWithOptions(g.Repo, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", g.Repo, err)
	}
	return repo, nil
}

// resolveRevision tries rev as a tag, a local branch, a remote branch and
// finally as any revision expression.
func resolveRevision(repo *git.Repository, rev string) (*plumbing.Hash, error) {
	if rev == "" {
		rev = "HEAD"
	}
	candidates := []plumbing.Revision{
		plumbing.Revision(plumbing.NewTagReferenceName(rev)),
		plumbing.Revision(plumbing.NewBranchReferenceName(rev)),
		plumbing.Revision(plumbing.NewRemoteReferenceName("origin", rev)),
		plumbing.Revision(rev),
	}
	for _, c := range candidates {
		if hash, err := repo.ResolveRevision(c); err == nil {
			return hash, nil
		}
	}
	return nil, fmt.Errorf("revision not found: %s", rev)
}

func isRemote(repo string) bool {
	return strings.Contains(repo, "://") || strings.HasPrefix(repo, "git@")
}

func hidden(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
