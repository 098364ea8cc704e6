/*
Copyright © 2019 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/


package windfieldutil

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/windfield/cloud"
)

// maybeDownload checks if the input is an existing file locally.
// If not, it checks if the file is a URL or a blob.
// If it is, it downloads the file and
// returns the path to the downloaded file.
// For shapefiles, it downloads all associated files and
// returns the path to the file with the ".shp" extension.
func maybeDownload(ctx context.Context, path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return downloadHTTP(ctx, path)
	}
	if cloud.IsBlob(path) {
		return downloadBlob(ctx, path)
	}
	return path, nil
}

// downloadHTTP downloads a file from the specified URL and returns
// the path to the downloaded file.
func downloadHTTP(ctx context.Context, path string) (string, error) {
	dir, err := ioutil.TempDir("", "windfield")
	if err != nil {
		return path, fmt.Errorf("windfieldutil: creating temporary download directory: %v", err)
	}
	fnames := expandShp(path)
	for _, fname := range fnames {
		if err := httpGet(ctx, fname, filepath.Join(dir, filepath.Base(fname))); err != nil {
			return path, err
		}
	}
	return filepath.Join(dir, filepath.Base(fnames[0])), nil
}

// maxRetries is the number of times a failed http download is retried.
const maxRetries = 3

// httpGet downloads url into dst, retrying connection failures and
// server errors.
func httpGet(ctx context.Context, url, dst string) error {
	var permanent error
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	err := backoff.RetryNotify(
		func() error {
			var retry bool
			retry, permanent = fetch(ctx, url, dst)
			if retry {
				return permanent
			}
			return nil
		},
		b,
		func(err error, d time.Duration) {
			logrus.WithError(err).WithField("retry_in", d).Warn("download failed")
		},
	)
	if err != nil {
		return err
	}
	return permanent
}

// fetch makes a single attempt to download url into dst. retry tells
// whether a failure might be temporary.
func fetch(ctx context.Context, url, dst string) (retry bool, err error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("windfieldutil: downloading %s: %v", url, err)
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return true, fmt.Errorf("windfieldutil: downloading %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode >= 500, fmt.Errorf("windfieldutil: downloading %s: %s", url, resp.Status)
	}
	w, err := os.Create(dst)
	if err != nil {
		return false, fmt.Errorf("windfieldutil: creating file for download: %v", err)
	}
	if _, err = io.Copy(w, resp.Body); err != nil {
		w.Close()
		return true, fmt.Errorf("windfieldutil: downloading %s: %v", url, err)
	}
	return false, w.Close()
}

// downloadBlob downloads the specified file from blob storage.
func downloadBlob(ctx context.Context, path string) (string, error) {
	dir, err := ioutil.TempDir("", "windfield")
	if err != nil {
		return path, fmt.Errorf("windfieldutil: creating temporary download directory: %v", err)
	}
	fnames := expandShp(path)
	for _, fname := range fnames {
		if err := cloud.Download(ctx, fname, filepath.Join(dir, filepath.Base(fname))); err != nil {
			return path, err
		}
	}
	return filepath.Join(dir, filepath.Base(fnames[0])), nil
}

// expandShp returns filename and, if it is a shapefile, the paths of
// its supporting files.
func expandShp(filename string) []string {
	o := []string{filename}
	if filepath.Ext(filename) != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}
