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


package cloud

import (
	"context"
	"fmt"
	"io"
	"os"

	"gocloud.dev/blob"
)

// Download copies the blob at the given URL into the local file dst.
func Download(ctx context.Context, path, dst string) error {
	bucketName, key, err := SplitURL(path)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("cloud: opening bucket %s: %v", bucketName, err)
	}
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("cloud: reading blob %s: %v", path, err)
	}
	defer r.Close()
	w, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("cloud: creating download file: %v", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: downloading blob %s: %v", path, err)
	}
	return w.Close()
}

// Upload copies the local file src to the blob at the given URL.
func Upload(ctx context.Context, src, path string) error {
	bucketName, key, err := SplitURL(path)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("cloud: opening bucket %s: %v", bucketName, err)
	}
	r, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cloud: opening file %s for upload: %v", src, err)
	}
	defer r.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: creating writer for blob %s: %v", path, err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: copying blob %s: %v", path, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("cloud: writing blob %s: %v", path, err)
	}
	return nil
}
