// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package downloader fetches dataset files over HTTP into a local cache directory.
package downloader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// ShowProgressBar controls whether DownloadIfMissing displays a progress bar while downloading.
var ShowProgressBar = true

// copyBytesBar is an io.Writer that advances a progress bar as bytes are written through it.
// The bar counts in units so that it never has more than ~1M ticks.
type copyBytesBar struct {
	w                             io.Writer
	bar                           *progressbar.ProgressBar
	amountWritten                 int64
	barUnit, numUnits, addedUnits int64
}

func newCopyBytesBar(w io.Writer, contentLength int64) *copyBytesBar {
	cb := &copyBytesBar{w: w, barUnit: 1}
	for contentLength > cb.barUnit*1024*1024 {
		cb.barUnit *= 1024
	}
	cb.numUnits = (contentLength + cb.barUnit - 1) / cb.barUnit
	cb.bar = progressbar.NewOptions64(cb.numUnits,
		progressbar.OptionSetDescription(humanize.IBytes(uint64(contentLength))),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	)
	return cb
}

// Write implements io.Writer.
func (cb *copyBytesBar) Write(p []byte) (n int, err error) {
	n, err = cb.w.Write(p)
	cb.amountWritten += int64(n)
	toUnits := cb.amountWritten / cb.barUnit
	if toUnits > cb.addedUnits {
		_ = cb.bar.Add64(toUnits - cb.addedUnits)
		cb.addedUnits = toUnits
	}
	return
}

// CopyWithProgressBar works like io.Copy, but displays a progress bar.
// If contentLength is unknown (<= 0) it falls back to a plain io.Copy.
func CopyWithProgressBar(dst io.Writer, src io.Reader, contentLength int64) (n int64, err error) {
	if contentLength <= 0 {
		return io.Copy(dst, src)
	}
	cb := newCopyBytesBar(dst, contentLength)
	n, err = io.Copy(cb, src)
	if err == nil && cb.addedUnits < cb.numUnits {
		_ = cb.bar.Add64(cb.numUnits - cb.addedUnits)
	}
	_ = cb.bar.Close()
	fmt.Println()
	return
}

// Download fetches url and saves it at filePath, creating the parent directory if needed.
//
// A non-2xx HTTP status is an error. On any failure the partially written file is removed.
func Download(url, filePath string, showProgressBar bool) (size int64, err error) {
	filePath, err = fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return 0, err
	}
	if err = os.MkdirAll(path.Dir(filePath), 0777); err != nil {
		return 0, errors.Wrapf(err, "failed to create the directory for %q", filePath)
	}

	resp, err := http.Get(url)
	if err != nil {
		return 0, errors.Wrapf(err, "failed downloading %q", url)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, errors.Errorf("failed downloading %q: HTTP status %q", url, resp.Status)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return 0, errors.Wrapf(err, "failed creating file %q", filePath)
	}
	if showProgressBar {
		size, err = CopyWithProgressBar(file, resp.Body, resp.ContentLength)
	} else {
		size, err = io.Copy(file, resp.Body)
	}
	if err != nil {
		_ = file.Close()
		_ = os.Remove(filePath)
		return 0, errors.Wrapf(err, "downloading %q to %q", url, filePath)
	}
	if err = file.Close(); err != nil {
		_ = os.Remove(filePath)
		return 0, errors.Wrapf(err, "failed closing %q", filePath)
	}
	klog.V(1).Infof("downloaded %s from %q to %q", humanize.IBytes(uint64(size)), url, filePath)
	return size, nil
}

// DownloadIfMissing downloads url into filePath, unless filePath already exists.
//
// If checkHash (hex encoded SHA-256) is given, the file is validated against it, and removed if it
// doesn't match.
func DownloadIfMissing(url, filePath, checkHash string) error {
	filePath, err := fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return err
	}
	exists, err := fsutil.FileExists(filePath)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Printf("Downloading %s ...\n", url)
		if _, err = Download(url, filePath, ShowProgressBar); err != nil {
			return err
		}
	}
	if checkHash == "" {
		return nil
	}
	return ValidateChecksum(filePath, checkHash)
}

// ValidateChecksum verifies that the SHA-256 of the file matches checkHash.
// If it doesn't, the file is removed (so a later call downloads it again) and an error is returned.
func ValidateChecksum(filePath, checkHash string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to open %q for checksum", filePath)
	}
	hasher := sha256.New()
	_, err = io.Copy(hasher, f)
	_ = f.Close()
	if err != nil {
		return errors.Wrapf(err, "failed to read %q for checksum", filePath)
	}
	fileHash := hex.EncodeToString(hasher.Sum(nil))
	if fileHash == strings.ToLower(checkHash) {
		return nil
	}
	if e2 := os.Remove(filePath); e2 != nil {
		klog.Errorf("Failed to remove %q, which failed the checksum test, please remove it: %+v", filePath, e2)
	}
	return errors.Errorf("file %q sha256 hash is %q, but expected %q, file deleted", filePath, fileHash, checkHash)
}
