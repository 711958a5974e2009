package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"portalia/internal/storage"
)

// Info reports what the server sees of the template on disk.
func (m *Manager) Info(ctx context.Context) (storage.TemplateInfo, error) {
	const op = "workbook.Manager.Info"

	info := storage.TemplateInfo{TemplatePath: m.templatePath}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		abs, err := filepath.Abs(m.templatePath)
		if err != nil {
			return fmt.Errorf("abs: %w", err)
		}
		info.AbsolutePath = abs

		st, err := os.Stat(m.templatePath)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stat: %w", err)
		}
		info.Exists = !st.IsDir()
		info.Size = st.Size()
		info.ModifiedAt = st.ModTime()
		return nil
	})

	var candidates []string
	g.Go(func() error {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getwd: %w", err)
		}
		info.WorkingDir = wd

		seen := make(map[string]bool)
		for _, pattern := range m.globs {
			matches, err := filepath.Glob(filepath.Join(wd, pattern))
			if err != nil {
				return fmt.Errorf("glob %q: %w", pattern, err)
			}
			for _, match := range matches {
				name := filepath.Base(match)
				if !seen[name] {
					seen[name] = true
					candidates = append(candidates, name)
				}
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return storage.TemplateInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	sort.Strings(candidates)
	info.CandidateFiles = candidates
	if info.CandidateFiles == nil {
		info.CandidateFiles = []string{}
	}

	return info, nil
}
