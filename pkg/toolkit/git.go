package toolkit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/ormasoftchile/grimoire/pkg/catalog"
	"github.com/ormasoftchile/grimoire/pkg/dynamic"
)

var errLogLimit = errors.New("limit reached")

// Git provides read-only repository tools. Every tool takes a repository
// path as its first argument so one provider serves any number of repos.
type Git struct{}

func (g *Git) Tools() []catalog.Tool {
	return []catalog.Tool{
		{
			Name:        "gitStatus",
			Description: "Summarize branch, staged, unstaged, and untracked files",
			Params:      []catalog.Param{{Name: "path", Type: dynamic.TypeString}},
			Handler: func(ctx context.Context, args []any) (any, error) {
				path, _ := args[0].(string)
				return gitStatus(repoPath(path))
			},
		},
		{
			Name:        "gitLog",
			Description: "Recent commit history, one 'shortHash subject (author)' per line",
			Params: []catalog.Param{
				{Name: "path", Type: dynamic.TypeString},
				{Name: "limit", Type: dynamic.TypeInt},
			},
			Handler: func(ctx context.Context, args []any) (any, error) {
				path, _ := args[0].(string)
				limit, _ := args[1].(int)
				if limit <= 0 {
					limit = 10
				}
				return gitLog(repoPath(path), limit)
			},
		},
		{
			Name:        "gitBranch",
			Description: "Name of the currently checked-out branch",
			Params:      []catalog.Param{{Name: "path", Type: dynamic.TypeString}},
			Handler: func(ctx context.Context, args []any) (any, error) {
				path, _ := args[0].(string)
				repo, err := git.PlainOpen(repoPath(path))
				if err != nil {
					return nil, fmt.Errorf("gitBranch: %w", err)
				}
				head, err := repo.Head()
				if err != nil {
					return nil, fmt.Errorf("gitBranch: %w", err)
				}
				if !head.Name().IsBranch() {
					return "HEAD (detached)", nil
				}
				return head.Name().Short(), nil
			},
		},
	}
}

func repoPath(path string) string {
	if path == "" {
		return "."
	}
	return path
}

func gitStatus(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("gitStatus: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("gitStatus: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("gitStatus: %w", err)
	}

	branch := "HEAD (detached)"
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "branch: %s\n", branch)
	if status.IsClean() {
		b.WriteString("clean")
		return b.String(), nil
	}
	for path, s := range status {
		switch {
		case s.Worktree == git.Untracked:
			fmt.Fprintf(&b, "?? %s\n", path)
		case s.Staging != git.Unmodified:
			fmt.Fprintf(&b, "%c  %s\n", s.Staging, path)
		case s.Worktree != git.Unmodified:
			fmt.Fprintf(&b, " %c %s\n", s.Worktree, path)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func gitLog(path string, limit int) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("gitLog: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return "", fmt.Errorf("gitLog: %w", err)
	}
	defer iter.Close()

	var lines []string
	err = iter.ForEach(func(commit *object.Commit) error {
		if len(lines) >= limit {
			return errLogLimit
		}
		subject := strings.SplitN(strings.TrimSpace(commit.Message), "\n", 2)[0]
		lines = append(lines, fmt.Sprintf("%s %s (%s)", commit.Hash.String()[:7], subject, commit.Author.Name))
		return nil
	})
	if err != nil && !errors.Is(err, errLogLimit) {
		return "", fmt.Errorf("gitLog: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}
