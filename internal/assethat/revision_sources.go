package assethat

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// GitSource asks the git binary for the abbreviated hash of the last commit
// touching the paths.
type GitSource struct {
	Dir string
}

func (g GitSource) Revision(ctx context.Context, paths []string) (string, error) {
	args := append([]string{"log", "-1", "--pretty=format:%h", "--"}, paths...)
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git log: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

// GoGitSource walks the repository history in-process, for hosts without a
// git binary. Paths must be relative to the repository root.
type GoGitSource struct {
	repo *git.Repository
}

func OpenGoGitSource(dir string) (*GoGitSource, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", dir, err)
	}
	return &GoGitSource{repo: repo}, nil
}

func (g *GoGitSource) Revision(ctx context.Context, paths []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	want := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		want[filepath.ToSlash(filepath.Clean(p))] = struct{}{}
	}

	iter, err := g.repo.Log(&git.LogOptions{
		PathFilter: func(p string) bool {
			_, ok := want[p]
			return ok
		},
	})
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer iter.Close()

	c, err := iter.Next()
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return c.Hash.String()[:7], nil
}

// FingerprintSource derives tokens from file contents instead of history.
type FingerprintSource struct {
	FS billy.Filesystem
}

func (f FingerprintSource) Revision(_ context.Context, paths []string) (string, error) {
	h := md5.New()
	for _, p := range paths {
		b, err := readFile(f.FS, p)
		if err != nil {
			return "", err
		}
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))[:12], nil
}

// FingerprintString returns the MD5 hex digest of s.
func FingerprintString(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func readFile(fsys billy.Filesystem, name string) ([]byte, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func newRevisionSource(s *Settings, fsys billy.Filesystem) (RevisionSource, error) {
	if s.Revisions != nil {
		return s.Revisions, nil
	}
	switch s.VCS {
	case VCSGit:
		return GitSource{Dir: s.Root}, nil
	case VCSGoGit:
		return OpenGoGitSource(s.Root)
	case VCSFingerprint:
		return FingerprintSource{FS: fsys}, nil
	}
	return nil, nil
}
