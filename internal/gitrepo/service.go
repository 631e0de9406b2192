// Package gitrepo implements the version store on top of a git repository:
// every Set is a commit, reads come from the HEAD tree.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"giftregistry/api/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const branchName = "main"

// CommitInfo describes one commit of the store's log.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	author  string
	mu      sync.Mutex
	repo    *git.Repository
}

// Open opens the repository at baseDir, initialising it when missing.
func Open(baseDir, author string) (*Service, error) {
	if author == "" {
		author = "registry"
	}
	s := &Service{baseDir: baseDir, author: author}

	repo, err := git.PlainOpen(baseDir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = s.init()
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	s.repo = repo
	return s, nil
}

func (s *Service) init() (*git.Repository, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(s.baseDir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchName))); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branchName, err)
	}
	return repo, nil
}

func (s *Service) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(key)
}

func (s *Service) read(key string) ([]byte, error) {
	commitObj, err := s.head()
	if err != nil {
		return nil, err
	}
	if commitObj == nil {
		return nil, store.ErrNotFound
	}
	file, err := commitObj.File(key)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", key, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open %s reader: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s bytes: %w", key, err)
	}
	return data, nil
}

// head returns the HEAD commit, or nil before the first commit.
func (s *Service) head() (*object.Commit, error) {
	ref, err := s.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	commitObj, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	return commitObj, nil
}

func (s *Service) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.commit(key, value, "set "+key)
	if err != nil {
		return &store.WriteError{Key: key, Err: err}
	}
	return nil
}

func (s *Service) Create(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.read(key); err == nil {
		return store.ErrExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return &store.WriteError{Key: key, Err: err}
	}
	if _, err := s.commit(key, value, "create "+key); err != nil {
		return &store.WriteError{Key: key, Err: err}
	}
	return nil
}

func (s *Service) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.head()
	return err
}

// History lists the most recent commits touching any key, newest first.
func (s *Service) History(limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commitObj, err := s.head()
	if err != nil || commitObj == nil {
		return nil, err
	}

	iter, err := s.repo.Log(&git.LogOptions{From: commitObj.Hash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) commit(key string, value []byte, message string) (plumbing.Hash, error) {
	if err := validKey(key); err != nil {
		return plumbing.ZeroHash, err
	}
	worktree, err := s.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	repoRoot := worktree.Filesystem.Root()
	target := filepath.Join(repoRoot, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("create dir for %s: %w", key, err)
	}
	if err := os.WriteFile(target, value, 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write %s: %w", key, err)
	}

	if _, err := worktree.Add(key); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add %s: %w", key, err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  s.author,
			Email: fmt.Sprintf("%s@local.registry.dev", sanitizeEmail(s.author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit %s: %w", key, err)
	}
	return hash, nil
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.HasPrefix(key, ".git") {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	bytes := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			bytes = append(bytes, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			bytes = append(bytes, '.')
		}
	}
	if len(bytes) == 0 {
		return "registry"
	}
	return string(bytes)
}
