package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	NoteImagesFailed = "some images failed to upload"

	DefaultMaxImagesPerRow  = 10
	DefaultImageConcurrency = 4
)

// ImageConfig controls image acquisition for a run
type ImageConfig struct {
	Bucket      string
	MaxPerRow   int
	Concurrency int
}

// ImageResult holds the durable URLs of one row in source order. Err
// aggregates the individual failures and is informational only. Ignored
// counts distinct URLs past the per-row limit that were never attempted.
type ImageResult struct {
	URLs      []string
	Attempted int
	Failed    int
	Ignored   int
	Err       error
}

// Notes returns the row annotations for dropped or failed images
func (r ImageResult) Notes() []string {
	var notes []string
	if r.Ignored > 0 {
		notes = append(notes, fmt.Sprintf("%d images over the per-row limit were ignored", r.Ignored))
	}
	if r.Failed > 0 {
		notes = append(notes, NoteImagesFailed)
	}
	return notes
}

// ImageAcquirer re-hosts the images referenced by a row
type ImageAcquirer struct {
	blobs  BlobStore
	cfg    ImageConfig
	logger *logrus.Entry
}

func NewImageAcquirer(blobs BlobStore, cfg ImageConfig, logger *logrus.Entry) *ImageAcquirer {
	if cfg.MaxPerRow <= 0 {
		cfg.MaxPerRow = DefaultMaxImagesPerRow
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultImageConcurrency
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ImageAcquirer{blobs: blobs, cfg: cfg, logger: logger}
}

// SplitImageURLs splits a comma-separated list, dropping blanks and repeats.
// At most max URLs are returned; ignored is the number of distinct URLs cut.
func SplitImageURLs(raw string, max int) (urls []string, ignored int) {
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		u := strings.TrimSpace(part)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if max > 0 && len(urls) == max {
			ignored++
			continue
		}
		urls = append(urls, u)
	}
	return urls, ignored
}

// Acquire fetches and stores every URL in raw. It never fails the row: a
// missing blob store or failing URLs only reduce the returned list.
func (a *ImageAcquirer) Acquire(ctx context.Context, raw string) ImageResult {
	urls, ignored := SplitImageURLs(raw, a.cfg.MaxPerRow)
	result := ImageResult{URLs: []string{}, Attempted: len(urls), Ignored: ignored}
	if ignored > 0 {
		a.logger.WithFields(logrus.Fields{
			"limit":   a.cfg.MaxPerRow,
			"ignored": ignored,
		}).Warn("Image URLs over the per-row limit ignored")
	}
	if len(urls) == 0 {
		return result
	}

	if a.blobs == nil {
		result.Failed = len(urls)
		result.Err = fmt.Errorf("blob store unavailable, %d images dropped", len(urls))
		a.logger.Warn(result.Err.Error())
		return result
	}

	stored := make([]string, len(urls))
	errs := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			durable, err := a.blobs.FetchAndStore(ctx, u, a.cfg.Bucket)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", u, err)
				return nil
			}
			if durable == "" {
				errs[i] = fmt.Errorf("%s: blob store returned no URL", u)
				return nil
			}
			stored[i] = durable
			return nil
		})
	}
	_ = g.Wait()

	var merr *multierror.Error
	for i := range urls {
		if errs[i] != nil {
			merr = multierror.Append(merr, errs[i])
			result.Failed++
			continue
		}
		result.URLs = append(result.URLs, stored[i])
	}

	if err := merr.ErrorOrNil(); err != nil {
		result.Err = err
		a.logger.WithError(err).WithFields(logrus.Fields{
			"attempted": result.Attempted,
			"failed":    result.Failed,
		}).Warn("Some images failed to upload")
	}
	return result
}
