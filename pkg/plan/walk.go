package plan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentHashes bounds the fan-out when hashing plan candidates so a
// huge artifact doesn't exhaust file descriptors.
const maxConcurrentHashes = 8

// fileCandidate is one file discovered under the artifact root, with its
// size known from the walk and its hash filled in by hashAll.
type fileCandidate struct {
	Path      string // relative to root, slash-separated
	AbsPath   string
	SizeBytes int64
	Hash      string
}

// walkBreadthFirst enumerates every regular file under root level by
// level, returning candidates in a stable alphabetical order by relative
// path.
func walkBreadthFirst(root string) ([]fileCandidate, error) {
	var files []fileCandidate
	queue := []string{root}

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", dir, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			abs := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				queue = append(queue, abs)
				continue
			}
			info, err := entry.Info()
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", abs, err)
			}
			if !info.Mode().IsRegular() {
				continue
			}
			rel, err := filepath.Rel(root, abs)
			if err != nil {
				return nil, err
			}
			files = append(files, fileCandidate{
				Path:      filepath.ToSlash(rel),
				AbsPath:   abs,
				SizeBytes: info.Size(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// hashAll computes sha256 for every candidate concurrently, bounded by
// maxConcurrentHashes, mirroring the worker pool's bounded-fan-out style
// (pkg/queue.WorkerPool) applied to a one-shot CPU/IO-bound batch instead of
// a long-lived pool.
func hashAll(ctx context.Context, files []fileCandidate) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentHashes)

	for i := range files {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			sum, err := hashFile(files[i].AbsPath)
			if err != nil {
				return fmt.Errorf("hash %s: %w", files[i].Path, err)
			}
			files[i].Hash = sum
			return nil
		})
	}
	return g.Wait()
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
