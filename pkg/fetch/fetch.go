// Package fetch localizes an artifact reference (an archive, a git URL, a
// local path, or an object-store key) onto a filesystem root the rest of
// the pipeline can walk.
package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lineagekit/discovery/pkg/models"
)

// IngestError wraps a fetch failure as the ingest_error kind.
type IngestError struct {
	StoragePath string
	Cause       error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("%s: localize %q: %v", models.ErrIngest, e.StoragePath, e.Cause)
}

func (e *IngestError) Unwrap() error { return e.Cause }

var blobPattern = regexp.MustCompile(`^(https?://[^/]+)/(.+?)/blob/(.+)$`)

// Fetcher localizes storage_path references onto a local directory.
type Fetcher struct {
	WorkDir    string
	S3Client   *s3.Client
	S3Bucket   string
	HTTPClient *http.Client
}

// New constructs a Fetcher rooted at workDir, optionally wired to an S3
// bucket for the object-store fallback branch.
func New(workDir string) (*Fetcher, error) {
	f := &Fetcher{WorkDir: workDir, HTTPClient: &http.Client{Timeout: 2 * time.Minute}}

	cfg, err := config.LoadDefaultConfig(context.Background())
	if err == nil {
		f.S3Client = s3.NewFromConfig(cfg)
	}
	if bucket := os.Getenv("DISCOVERY_ARTIFACT_BUCKET"); bucket != "" {
		f.S3Bucket = bucket
	}
	return f, nil
}

// Localize resolves storagePath into an existing local directory root,
// dispatching on the reference's prefix/shape.
func (f *Fetcher) Localize(ctx context.Context, storagePath string) (string, error) {
	var (
		dir string
		err error
	)
	switch {
	case blobPattern.MatchString(storagePath):
		dir, err = f.fetchGitBlob(ctx, storagePath)
	case strings.HasPrefix(storagePath, "http://") || strings.HasPrefix(storagePath, "https://"):
		dir, err = f.cloneGit(ctx, storagePath)
	case strings.HasPrefix(storagePath, "local://") || filepath.IsAbs(storagePath):
		dir, err = f.useLocal(storagePath)
	default:
		dir, err = f.fetchObjectStore(ctx, storagePath)
	}
	if err != nil {
		return "", &IngestError{StoragePath: storagePath, Cause: err}
	}
	return dir, nil
}

// fetchGitBlob rewrites a /blob/ URL to its raw form and downloads the single file.
func (f *Fetcher) fetchGitBlob(ctx context.Context, storagePath string) (string, error) {
	m := blobPattern.FindStringSubmatch(storagePath)
	host, repoPath, tail := m[1], m[2], m[3]
	rawURL := fmt.Sprintf("%s/%s/raw/%s", host, repoPath, tail)

	dest := f.freshDir()
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("raw blob fetch: status %d", resp.StatusCode)
	}

	out, err := os.Create(filepath.Join(dest, filepath.Base(tail)))
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", err
	}
	return dest, nil
}

// cloneGit performs a shallow clone into a fresh, timestamp-suffixed directory.
func (f *Fetcher) cloneGit(ctx context.Context, url string) (string, error) {
	dest := f.freshDir()
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", url, dest)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if cmd.ProcessState != nil && cmd.ProcessState.ExitCode() == 128 {
			if _, statErr := os.Stat(filepath.Join(dest, ".git")); statErr == nil {
				slog.Warn("git clone exited 128 but .git exists, continuing", "url", url)
				return dest, nil
			}
		}
		return "", fmt.Errorf("git clone: %v: %s", err, out)
	}
	return dest, nil
}

// useLocal resolves an in-place directory or copies a single file to a temp dir.
func (f *Fetcher) useLocal(storagePath string) (string, error) {
	p := strings.TrimPrefix(storagePath, "local://")
	info, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return p, nil
	}

	dest := f.freshDir()
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}
	src, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer src.Close()
	out, err := os.Create(filepath.Join(dest, filepath.Base(p)))
	if err != nil {
		return "", err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return dest, err
}

// fetchObjectStore downloads "source-code/{storagePath}" from S3 and
// decompresses it if it is a zip archive.
func (f *Fetcher) fetchObjectStore(ctx context.Context, storagePath string) (string, error) {
	if f.S3Client == nil || f.S3Bucket == "" {
		return "", fmt.Errorf("object store fallback requires DISCOVERY_ARTIFACT_BUCKET and AWS credentials")
	}
	key := "source-code/" + storagePath

	out, err := f.S3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("s3 get object %s: %w", key, err)
	}
	defer out.Body.Close()

	dest := f.freshDir()
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}

	tmpFile := filepath.Join(dest, filepath.Base(key))
	tmp, err := os.Create(tmpFile)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		return "", err
	}
	tmp.Close()

	if strings.HasSuffix(strings.ToLower(key), ".zip") {
		extractDir := filepath.Join(dest, "extracted")
		if err := unzip(tmpFile, extractDir); err != nil {
			return "", fmt.Errorf("unzip %s: %w", tmpFile, err)
		}
		return extractDir, nil
	}
	return dest, nil
}

func unzip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	for _, file := range r.File {
		target := filepath.Join(destDir, file.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("zip slip detected: %s", file.Name)
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := file.Open()
		if err != nil {
			return err
		}
		dst, err := os.Create(target)
		if err != nil {
			src.Close()
			return err
		}
		_, copyErr := io.Copy(dst, src)
		src.Close()
		dst.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

func (f *Fetcher) freshDir() string {
	return filepath.Join(f.WorkDir, fmt.Sprintf("artifact-%d", time.Now().UnixNano()))
}
