package scanner

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/j-keck/arping"
)

var (
	macPattern = regexp.MustCompile(
		`([0-9A-Fa-f]{2}:[0-9A-Fa-f]{2}:[0-9A-Fa-f]{2}:[0-9A-Fa-f]{2}:[0-9A-Fa-f]{2}:[0-9A-Fa-f]{2})`)
	titlePattern   = regexp.MustCompile(`(?i)<title>([^<]+)</title>`)
	versionPattern = regexp.MustCompile(`ESPHome\s+v?([0-9]+\.[0-9]+[^\s<"]*)`)
)

// MetadataClient fetches best-effort metadata (MAC address, device info)
// from a board's web server. All methods return errors instead of
// swallowing them; callers fold failures into scan results.
type MetadataClient struct {
	Timeout time.Duration
	client  *http.Client
}

func NewMetadataClient(timeout time.Duration) *MetadataClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MetadataClient{
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (m *MetadataClient) fetchPage(ctx context.Context, host string, port int, username, password string) (string, error) {
	url := fmt.Sprintf("http://%s/", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if username != "" && password != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web server returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchMAC extracts the board's MAC address from its web page. When the
// board is addressed by a literal IP on the local segment, an ARP probe is
// used as a fallback.
func (m *MetadataClient) FetchMAC(ctx context.Context, host string, webPort int, username, password string) (string, error) {
	html, err := m.fetchPage(ctx, host, webPort, username, password)
	if err == nil {
		if match := macPattern.FindString(html); match != "" {
			return strings.ToUpper(match), nil
		}
		err = fmt.Errorf("no MAC address on web page")
	}

	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		mac, _, arpErr := arping.Ping(ip)
		if arpErr == nil {
			return strings.ToUpper(mac.String()), nil
		}
		return "", fmt.Errorf("web scrape failed (%v), arping failed: %w", err, arpErr)
	}
	return "", err
}

// FetchDeviceInfo extracts firmware/platform details from the board's web
// page title and footer.
func (m *MetadataClient) FetchDeviceInfo(ctx context.Context, host string, webPort int, username, password string) (map[string]string, error) {
	html, err := m.fetchPage(ctx, host, webPort, username, password)
	if err != nil {
		return nil, err
	}

	info := map[string]string{}
	if match := titlePattern.FindStringSubmatch(html); match != nil {
		info["title"] = strings.TrimSpace(match[1])
	}
	if match := versionPattern.FindStringSubmatch(html); match != nil {
		info["esphome_version"] = match[1]
	}
	if len(info) == 0 {
		return nil, fmt.Errorf("no device info on web page")
	}
	return info, nil
}
