package ota

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultChunkSize for streamed uploads.
const DefaultChunkSize = 4096

// FlashChunked streams a firmware image to a board in fixed-size chunks
// instead of holding it in memory, reporting progress proportional to the
// bytes sent. Used when the image is large relative to available memory.
func FlashChunked(ctx context.Context, firmwarePath, host string, port int, chunkSize int, onProgress ProgressFunc, timeout time.Duration) (bool, string) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	file, err := os.Open(firmwarePath)
	if err != nil {
		return false, fmt.Sprintf("Firmware file not found: %s", firmwarePath)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return false, fmt.Sprintf("Flash failed: %v", err)
	}
	size := stat.Size()
	if size == 0 {
		return false, fmt.Sprintf("Firmware file is empty: %s", firmwarePath)
	}

	body := &progressReader{
		reader:    io.LimitReader(file, size),
		chunkSize: chunkSize,
		total:     size,
		onChunk: func(sent int64) {
			if onProgress != nil {
				percent := int(sent * 100 / size)
				onProgress(Progress{
					Percent:    percent,
					BytesSent:  sent,
					TotalBytes: size,
					Message:    fmt.Sprintf("Uploading: %d/%d bytes", sent, size),
				})
			}
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, updateURL(host, port), body)
	if err != nil {
		return false, fmt.Sprintf("Flash failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = size

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return false, "Flash timed out"
		}
		return false, fmt.Sprintf("Flash failed: %v", err)
	}
	defer resp.Body.Close()

	text := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("Flash failed: HTTP %d - %s", resp.StatusCode, text)
	}

	if onProgress != nil {
		onProgress(Progress{
			Percent:    100,
			BytesSent:  size,
			TotalBytes: size,
			Message:    "Flash successful!",
		})
	}
	return true, "Firmware flashed successfully"
}

// progressReader caps reads at chunkSize and reports cumulative bytes
// after each chunk.
type progressReader struct {
	reader    io.Reader
	chunkSize int
	total     int64
	sent      int64
	onChunk   func(sent int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if len(p) > pr.chunkSize {
		p = p[:pr.chunkSize]
	}
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.sent += int64(n)
		pr.onChunk(pr.sent)
	}
	return n, err
}
