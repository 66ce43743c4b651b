// Package ota delivers firmware images to boards over HTTP. The upload
// contract is fixed by the receiving firmware: a multipart POST to /update
// with the image in a "firmware" field and its MD5 in the x-MD5 header.
// The checksum is for device-side integrity checking, not security, and
// must stay MD5 for wire compatibility.
package ota

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Progress reports an upload milestone to the caller.
type Progress struct {
	Percent    int
	BytesSent  int64
	TotalBytes int64
	Message    string
}

// ProgressFunc receives progress milestones during an upload.
type ProgressFunc func(Progress)

// Fallback configures the authenticated web-server upload path tried when
// the primary OTA port fails.
type Fallback struct {
	WebPort  int
	Username string
	Password string
}

// Options tune a single flash attempt.
type Options struct {
	Timeout    time.Duration
	OnProgress ProgressFunc
	Fallback   *Fallback
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 120 * time.Second
	}
	return o.Timeout
}

func (o Options) report(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

// Flash uploads a firmware image to a board's OTA port, falling back to
// the authenticated web-server port if one is configured. The result is
// always (success, message); network failures are folded into the message,
// never returned as errors. The engine does not retry a transport on its
// own; retries are the caller's re-invocation.
func Flash(ctx context.Context, firmwarePath, host string, otaPort int, opts Options) (bool, string) {
	firmware, err := os.ReadFile(firmwarePath)
	if err != nil {
		return false, fmt.Sprintf("Firmware file not found: %s", firmwarePath)
	}

	sum := md5.Sum(firmware)
	firmwareMD5 := hex.EncodeToString(sum[:])
	size := int64(len(firmware))

	opts.report(Progress{Percent: 0, TotalBytes: size, Message: "Preparing upload..."})

	primaryURL := updateURL(host, otaPort)
	ok, message := tryUpload(ctx, primaryURL, filepath.Base(firmwarePath), firmware, firmwareMD5, "", "", opts, fmt.Sprintf("OTA:%d", otaPort))
	if ok {
		return true, message
	}

	fb := opts.Fallback
	if fb == nil || fb.WebPort == 0 || fb.Username == "" || fb.Password == "" {
		return false, message
	}

	opts.report(Progress{
		Percent:    5,
		TotalBytes: size,
		Message:    fmt.Sprintf("OTA port failed, trying web server port %d...", fb.WebPort),
	})

	fallbackURL := updateURL(host, fb.WebPort)
	ok, webMessage := tryUpload(ctx, fallbackURL, filepath.Base(firmwarePath), firmware, firmwareMD5, fb.Username, fb.Password, opts, fmt.Sprintf("WEB:%d", fb.WebPort))
	if ok {
		return true, webMessage + " (web server fallback)"
	}
	return false, fmt.Sprintf("OTA failed: %s | Web fallback failed: %s", message, webMessage)
}

func tryUpload(ctx context.Context, url, filename string, firmware []byte, firmwareMD5, username, password string, opts Options, label string) (bool, string) {
	size := int64(len(firmware))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("firmware", filename)
	if err != nil {
		return false, fmt.Sprintf("Flash failed (%s): %v", label, err)
	}
	if _, err := part.Write(firmware); err != nil {
		return false, fmt.Sprintf("Flash failed (%s): %v", label, err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return false, fmt.Sprintf("Flash failed (%s): %v", label, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("x-MD5", firmwareMD5)
	if username != "" && password != "" {
		req.SetBasicAuth(username, password)
	}

	opts.report(Progress{
		Percent:    10,
		TotalBytes: size,
		Message:    fmt.Sprintf("Connecting to board (%s)...", label),
	})

	client := &http.Client{Timeout: opts.timeout()}
	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return false, fmt.Sprintf("Flash timed out (%s)", label)
		}
		return false, fmt.Sprintf("Connection failed (%s): %v", label, err)
	}
	defer resp.Body.Close()

	opts.report(Progress{
		Percent:    50,
		BytesSent:  size,
		TotalBytes: size,
		Message:    fmt.Sprintf("Uploading firmware (%s)...", label),
	})

	text := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("Flash failed: HTTP %d - %s", resp.StatusCode, text)
	}

	opts.report(Progress{
		Percent:    100,
		BytesSent:  size,
		TotalBytes: size,
		Message:    "Flash successful! Board is rebooting...",
	})
	return true, "Firmware flashed successfully"
}

// CheckEndpoint reports whether a board exposes an /update handler. Boards
// answer GET on the update path with 200 or 405 depending on firmware.
func CheckEndpoint(ctx context.Context, host string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, updateURL(host, port), nil)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusMethodNotAllowed
}

func updateURL(host string, port int) string {
	return fmt.Sprintf("http://%s/update", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
}

func readBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return string(body)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
