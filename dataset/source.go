package dataset

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/vgate/errors"
	"github.com/teranos/vgate/logger"
)

// Resolve loads a dataset from a local path or a remote source understood
// by go-getter:
//   - Local paths: sales.csv, /data/q1.csv
//   - HTTP(S) URLs: https://example.com/exports/q1.csv
//   - Object stores: s3::https://s3.amazonaws.com/bucket/q1.csv, gcs::...
//
// Remote files are downloaded to a temporary directory that is removed
// before Resolve returns; the dataset keeps the bytes in memory.
func Resolve(ctx context.Context, src string, log *zap.SugaredLogger) (*Dataset, error) {
	log = logger.OrNop(log)

	if _, err := os.Stat(src); err == nil {
		return Load(src)
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}
	detected, err := getter.Detect(src, pwd, getter.Detectors)
	if err != nil {
		return nil, sourceError(errors.Wrapf(err, "detect dataset source %s", src))
	}

	parsed, err := url.Parse(detected)
	if err != nil {
		return nil, sourceError(errors.Wrapf(err, "parse dataset source %s", detected))
	}
	if parsed.Scheme == "file" || parsed.Scheme == "" {
		// Detected as local but missing; Load reports the read error
		return Load(filepath.FromSlash(parsed.Path))
	}

	tempDir, err := os.MkdirTemp("", "vgate-fetch-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp directory")
	}
	defer os.RemoveAll(tempDir)

	name := remoteName(parsed)
	dst := filepath.Join(tempDir, name)

	log.Infow("fetching dataset", "source", src, "detected", detected)
	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     dst,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}
	if err := client.Get(); err != nil {
		return nil, sourceError(errors.Wrapf(err, "fetch dataset %s", src))
	}

	ds, err := Load(dst)
	if err != nil {
		return nil, err
	}
	log.Debugw("dataset fetched", "source", src, logger.FieldDatasetID, ds.Hash(), "bytes", ds.Size())
	return ds, nil
}

// ErrSource marks datasets that could not be located or downloaded.
// Such errors are also ErrInvalidDataset.
var ErrSource = errors.New("dataset source unavailable")

func sourceError(err error) error {
	return errors.Mark(errors.Mark(err, ErrSource), errors.ErrInvalidDataset)
}

func remoteName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "dataset.csv"
	}
	return name
}
