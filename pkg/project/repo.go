package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"

	"mcp-shell-server/pkg/toolerr"
)

// DefaultAuthor signs commits made without an explicit author.
const DefaultAuthor = "mcp-client"

const commitEmail = "mcp-server@localhost"

// CloneResult describes the outcome of Clone.
type CloneResult struct {
	RepoName string
	Path     string
	URL      string
	Message  string
	Existed  bool
	Replaced bool
	// Output holds the transfer progress reported by the remote.
	Output string
}

// CommitInfo is one entry of a project's history.
type CommitInfo struct {
	Hash    string `json:"hash"`
	Author  string `json:"author"`
	Email   string `json:"email"`
	Date    string `json:"date"` // RFC3339
	Message string `json:"message"`
}

// Create makes a new project directory under the root, initializes a git
// repository with an initial commit and switches the session into it.
func (m *Manager) Create(sess *Session, name string) (string, error) {
	slug := ProjectSlug(name)
	if !validDirName(slug) {
		return "", toolerr.New(toolerr.CodeInvalidInput, "Invalid project name: '%s'", name)
	}
	projectPath := filepath.Join(m.rootPath, slug)

	if exists, _ := afero.Exists(m.store.Fs(), projectPath); exists {
		slog.Warn("Project with this name already exists, generating a unique name", "slug", slug)
		slug = fmt.Sprintf("%s-%s", slug, time.Now().Format("20060102150405"))
		projectPath = filepath.Join(m.rootPath, slug)
	}

	if err := m.store.Fs().MkdirAll(projectPath, 0o755); err != nil {
		return "", toolerr.Wrap(toolerr.CodeIO, err, "failed to create project directory")
	}
	if _, err := git.PlainInit(projectPath, false); err != nil {
		return "", toolerr.Wrap(toolerr.CodeIO, err, "failed to initialize git repository")
	}
	if err := afero.WriteFile(m.store.Fs(), filepath.Join(projectPath, ".gitkeep"), nil, 0o644); err != nil {
		slog.Warn("Failed to create .gitkeep", "project", slug, "error", err)
	}
	if _, err := m.commitAll(projectPath, "Initial commit", "system"); err != nil {
		slog.Warn("Failed to create initial commit", "project", slug, "error", err)
	}

	slog.Info("Created project", "project", slug, "path", projectPath)
	sess.setDir(projectPath)
	return projectPath, nil
}

// Clone checks out url into the root and switches the session into it.
// The session is moved to the root first, and stays there if the clone
// fails. A non-nil result is returned alongside clone errors so callers can
// surface the transfer output.
func (m *Manager) Clone(ctx context.Context, sess *Session, url string, reset bool) (*CloneResult, error) {
	repoName := RepoNameFromURL(url)
	if !validDirName(repoName) {
		return nil, toolerr.New(toolerr.CodeInvalidInput, "Invalid repository name derived from URL: '%s'", repoName)
	}

	sess.setDir(m.rootPath)
	target := filepath.Join(m.rootPath, repoName)
	res := &CloneResult{RepoName: repoName, Path: target}

	if m.store.IsDir(target) {
		if !reset {
			sess.setDir(target)
			res.Existed = true
			res.Message = fmt.Sprintf("Repository '%s' already exists. Switched to existing directory.", repoName)
			return res, nil
		}
		if err := m.store.Fs().RemoveAll(target); err != nil {
			return res, toolerr.Wrap(toolerr.CodeIO, err, "Failed to remove '%s'", target)
		}
		res.Replaced = true
	}

	if !strings.HasSuffix(url, ".git") {
		url += ".git"
	}
	res.URL = url

	var progress bytes.Buffer
	opts := &git.CloneOptions{URL: url, Progress: &progress}
	if auth := sshAuth(url); auth != nil {
		opts.Auth = auth
	}

	slog.Debug("Cloning repository", "url", url, "target", target)
	_, err := git.PlainCloneContext(ctx, target, false, opts)
	res.Output = progress.String()
	if err != nil {
		return res, toolerr.Wrap(toolerr.CodeIO, err, "git clone failed")
	}

	sess.setDir(target)
	if res.Replaced {
		res.Message = "Existing directory was replaced. "
	}
	res.Message += fmt.Sprintf("Cloned '%s' into '%s'.", url, target)
	return res, nil
}

// sshAuth returns agent based auth for SSH remotes, without host key
// verification. Other protocols get nil.
func sshAuth(url string) transport.AuthMethod {
	ep, err := transport.NewEndpoint(url)
	if err != nil || ep.Protocol != "ssh" {
		return nil
	}
	user := ep.User
	if user == "" {
		user = gitssh.DefaultUsername
	}
	auth, err := gitssh.NewSSHAgentAuth(user)
	if err != nil {
		slog.Debug("ssh agent unavailable, cloning without explicit auth", "error", err)
		return nil
	}
	auth.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	return auth
}

// History returns up to limit commits of the repository containing the
// session's active directory, newest first.
func (m *Manager) History(sess *Session, limit int) ([]CommitInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	repo, _, err := m.openRepo(sess.Dir())
	if err != nil {
		return nil, err
	}

	cIter, err := repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, toolerr.Wrap(toolerr.CodeIO, err, "failed to read history")
	}
	defer cIter.Close()

	commits := []CommitInfo{}
	for len(commits) < limit {
		c, err := cIter.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, toolerr.Wrap(toolerr.CodeIO, err, "failed to read history")
		}
		commits = append(commits, CommitInfo{
			Hash:    c.Hash.String(),
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			Date:    c.Author.When.Format(time.RFC3339),
			Message: strings.TrimRight(c.Message, "\n"),
		})
	}
	return commits, nil
}

// Commit stages every change in the repository containing the active
// directory and commits it. It returns the new commit hash.
func (m *Manager) Commit(sess *Session, message, author string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", toolerr.New(toolerr.CodeInvalidInput, "commit message cannot be empty")
	}
	if author == "" {
		author = DefaultAuthor
	}
	return m.commitAll(sess.Dir(), message, author)
}

// openRepo opens the repository enclosing dir. The search for .git walks up
// the tree, so a worktree rooted above the work directory is rejected.
func (m *Manager) openRepo(dir string) (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil, toolerr.New(toolerr.CodeInvalidInput, "'%s' is not inside a git repository", dir)
		}
		return nil, nil, toolerr.Wrap(toolerr.CodeIO, err, "failed to open git repository")
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, nil, toolerr.Wrap(toolerr.CodeIO, err, "failed to get worktree")
	}
	if top := worktree.Filesystem.Root(); !m.Contains(top) {
		return nil, nil, toolerr.New(toolerr.CodeUnauthorizedPath,
			"git repository at '%s' is outside %s", top, m.rootPath)
	}
	return repo, worktree, nil
}

func (m *Manager) commitAll(dir, message, author string) (string, error) {
	_, worktree, err := m.openRepo(dir)
	if err != nil {
		return "", err
	}

	// git add -A
	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", toolerr.Wrap(toolerr.CodeIO, err, "failed to stage changes")
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: commitEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return "", toolerr.New(toolerr.CodeInvalidInput, "nothing to commit, working tree clean")
		}
		return "", toolerr.Wrap(toolerr.CodeIO, err, "failed to commit changes")
	}

	slog.Debug("Committed changes", "dir", dir, "commit", hash.String())
	return hash.String(), nil
}
