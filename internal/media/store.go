package media

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrFileTooBig means the download stream passed the configured size
	// cap. Recoverable: the request fails, the store is untouched.
	ErrFileTooBig = errors.New("media: file exceeds maximum size")
	// ErrHashCollision means two different-sized contents produced the
	// same hash. The store's correctness assumption no longer holds, so
	// the worker halts rather than corrupt the store.
	ErrHashCollision = errors.New("media: hash collision detected")
)

// DefaultMaxSize is the 4 GiB binary boundary above which downloads abort.
const DefaultMaxSize = int64(math.MaxUint32)

// Result is the outcome of one download request.
type Result struct {
	Asset Asset
	Err   error
}

type request struct {
	url   string
	reply chan Result
}

// Config holds the media store parameters.
type Config struct {
	// Root is the directory the content-addressed tree lives under.
	Root string
	// IndexPath is the sqlite bookkeeping database file.
	IndexPath string
	// MaxSize caps a single download, in bytes. Zero means DefaultMaxSize.
	MaxSize int64
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// UserAgent sent on download requests.
	UserAgent string
}

// Store downloads, hashes, deduplicates and commits media assets.
//
// All requests funnel through one worker goroutine, which serializes every
// index mutation. Duplicate in-flight URLs are not coalesced: the hash check
// against the index is what protects correctness if two requests race.
type Store struct {
	cfg      Config
	client   *http.Client
	idx      *index
	logger   *slog.Logger
	requests chan request
}

func NewStore(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(cfg.Root, 0o750); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	idx, err := openIndex(cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	return &Store{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		idx:      idx,
		logger:   logger.With("component", "media"),
		requests: make(chan request, 100),
	}, nil
}

// EnqueueDownload queues a URL for download and returns a handle that
// resolves once the worker has handled the request.
func (s *Store) EnqueueDownload(ctx context.Context, rawURL string) <-chan Result {
	reply := make(chan Result, 1)
	select {
	case s.requests <- request{url: rawURL, reply: reply}:
	case <-ctx.Done():
		reply <- Result{Err: ctx.Err()}
	}
	return reply
}

// Run processes download requests until ctx is canceled. It returns a
// non-nil error only on an integrity violation, which the caller should
// treat as fatal.
func (s *Store) Run(ctx context.Context) error {
	defer s.idx.close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.requests:
			result := s.handle(ctx, req.url)
			req.reply <- result
			if errors.Is(result.Err, ErrHashCollision) {
				s.logger.Error("halting media worker", "error", result.Err)
				return result.Err
			}
		}
	}
}

func (s *Store) handle(ctx context.Context, rawURL string) Result {
	// Repeated references to a known URL resolve from the index with no
	// network access.
	if existing, err := s.idx.assetByURL(ctx, rawURL); err != nil {
		return Result{Err: fmt.Errorf("look up url: %w", err)}
	} else if existing != nil {
		s.logger.Debug("url already stored", "url", rawURL, "hash", existing.Path())
		return Result{Asset: *existing}
	}

	downloaded, tmpPath, err := s.download(ctx, rawURL)
	if err != nil {
		return Result{Err: err}
	}

	asset, err := s.commit(ctx, rawURL, downloaded, tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return Result{Err: err}
	}
	return Result{Asset: asset}
}

// download streams the URL to a uniquely named temporary file while hashing
// and counting bytes. The caller owns the temp file on success.
func (s *Store) download(ctx context.Context, rawURL string) (Asset, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Asset{}, "", fmt.Errorf("create request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Asset{}, "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Asset{}, "", fmt.Errorf("download %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	tmpPath := filepath.Join(s.cfg.Root, uuid.NewString()+".tmp")
	file, err := os.Create(tmpPath)
	if err != nil {
		return Asset{}, "", fmt.Errorf("create temp file: %w", err)
	}

	hasher := sha256.New()
	var size int64
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			size += int64(n)
			if size > s.cfg.MaxSize {
				file.Close()
				_ = os.Remove(tmpPath)
				return Asset{}, "", ErrFileTooBig
			}
			hasher.Write(buf[:n])
			if _, err := file.Write(buf[:n]); err != nil {
				file.Close()
				_ = os.Remove(tmpPath)
				return Asset{}, "", fmt.Errorf("write temp file: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			file.Close()
			_ = os.Remove(tmpPath)
			return Asset{}, "", fmt.Errorf("stream body: %w", readErr)
		}
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return Asset{}, "", fmt.Errorf("close temp file: %w", err)
	}

	var asset Asset
	copy(asset.Hash[:], hasher.Sum(nil))
	asset.Size = uint32(size)
	asset.Type = typeFromURL(rawURL)
	return asset, tmpPath, nil
}

// commit moves the temp file into its content-addressed location, then does
// the hash-keyed bookkeeping. The file lands first: a crash after the rename
// but before the index updates leaves an orphaned file, which is a
// recoverable inconsistency; a crash before the rename leaves only a
// discardable temp, and the index never names a path that does not exist.
func (s *Store) commit(ctx context.Context, rawURL string, downloaded Asset, tmpPath string) (Asset, error) {
	existing, err := s.idx.assetByHash(ctx, downloaded.Hash)
	if err != nil {
		return Asset{}, fmt.Errorf("look up hash: %w", err)
	}

	if existing == nil {
		if err := s.place(tmpPath, downloaded); err != nil {
			return Asset{}, err
		}
		if err := s.idx.upsertAsset(ctx, downloaded); err != nil {
			return Asset{}, fmt.Errorf("insert asset: %w", err)
		}
		if err := s.idx.linkWebAsset(ctx, rawURL, downloaded.Hash); err != nil {
			return Asset{}, fmt.Errorf("link web asset: %w", err)
		}
		s.logger.Debug("stored new asset", "url", rawURL, "path", downloaded.Path(), "size", downloaded.Size)
		return downloaded, nil
	}

	if existing.Size != downloaded.Size {
		s.logger.Error("same hash, different sizes",
			"url", rawURL,
			"stored_size", existing.Size,
			"downloaded_size", downloaded.Size,
		)
		return Asset{}, fmt.Errorf("%w: url %s", ErrHashCollision, rawURL)
	}

	// Same content already on disk. The only bookkeeping that may be due
	// is upgrading a previously Unknown media type now that the new URL
	// revealed one. The bytes move with the row: the fresh copy lands at
	// the type-derived path before the index changes, then the old .bin
	// copy goes away.
	result := *existing
	if existing.Type == TypeUnknown && downloaded.Type != TypeUnknown {
		upgraded := *existing
		upgraded.Type = downloaded.Type
		if err := s.place(tmpPath, upgraded); err != nil {
			return Asset{}, err
		}
		if err := s.idx.upsertAsset(ctx, upgraded); err != nil {
			return Asset{}, fmt.Errorf("upgrade asset type: %w", err)
		}
		_ = os.Remove(filepath.Join(s.cfg.Root, existing.Path()))
		result = upgraded
		s.logger.Info("upgraded asset media type", "hash", upgraded.Path(), "type", upgraded.Type)
	} else {
		_ = os.Remove(tmpPath)
	}
	if err := s.idx.linkWebAsset(ctx, rawURL, result.Hash); err != nil {
		return Asset{}, fmt.Errorf("link web asset: %w", err)
	}
	return result, nil
}

// place renames the temp file into the asset's content-addressed location,
// creating the shard directory on the way.
func (s *Store) place(tmpPath string, asset Asset) error {
	finalPath := filepath.Join(s.cfg.Root, asset.Path())
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o750); err != nil {
		return fmt.Errorf("create shard directory: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("commit asset file: %w", err)
	}
	return nil
}

// typeFromURL derives the media type from the URL path's extension. Query
// strings and fragments are ignored.
func typeFromURL(rawURL string) Type {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return TypeUnknown
	}
	ext := strings.TrimPrefix(filepath.Ext(parsed.Path), ".")
	return TypeFromExtension(ext)
}
