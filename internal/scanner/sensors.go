package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"

	"cactusd/internal/model"
)

// Patterns matching entity state markup produced by the ESPHome web_server
// component across its v2/v3 page layouts.
var (
	entityPattern = regexp.MustCompile(
		`(?i)id=["'](?:sensor|number|text_sensor|binary_sensor)-([^"']+)["'][^>]*>([^<]*)<`)
	embeddedJSONPattern = regexp.MustCompile(
		`"id"\s*:\s*"([^"]+)"\s*,\s*"state"\s*:\s*"([^"]*)"`)
	tableRowPattern = regexp.MustCompile(
		`(?i)<tr[^>]*>\s*<td[^>]*>([^<]+)</td>\s*<td[^>]*>([^<]+)</td>`)
	stateUnitPattern = regexp.MustCompile(
		`^([\d.,-]+)\s*(%|°[CcFf]|[a-zA-Z/°µ]+)\s*$`)
)

// DiscoverSensors pulls the entity list from a board's web server. The
// rendered page is parsed first; if it yields nothing, the first chunk of
// the /events SSE stream is tried.
func (m *MetadataClient) DiscoverSensors(ctx context.Context, host string, webPort int, username, password string) ([]model.Sensor, error) {
	html, err := m.fetchPage(ctx, host, webPort, username, password)
	if err != nil {
		return nil, err
	}

	sensors := ParseWebPage(html)
	if len(sensors) > 0 {
		return sensors, nil
	}

	sensors, err = m.fetchEvents(ctx, host, webPort, username, password)
	if err != nil {
		return nil, err
	}
	if len(sensors) == 0 {
		return nil, fmt.Errorf("no sensors found")
	}
	return sensors, nil
}

// ParseWebPage extracts sensor entities from an ESPHome web_server page.
func ParseWebPage(html string) []model.Sensor {
	var sensors []model.Sensor
	seen := map[string]bool{}

	add := func(id, stateText string) {
		id = strings.TrimSpace(id)
		stateText = strings.TrimSpace(stateText)
		if id == "" || stateText == "" || seen[id] {
			return
		}
		state, unit := splitStateUnit(stateText)
		sensors = append(sensors, model.Sensor{
			ID:    id,
			Name:  titleCase(id),
			State: state,
			Unit:  unit,
		})
		seen[id] = true
	}

	for _, match := range entityPattern.FindAllStringSubmatch(html, -1) {
		add(match[1], match[2])
	}
	for _, match := range embeddedJSONPattern.FindAllStringSubmatch(html, -1) {
		add(match[1], match[2])
	}
	for _, match := range tableRowPattern.FindAllStringSubmatch(html, -1) {
		name := strings.TrimSpace(match[1])
		switch strings.ToLower(name) {
		case "name", "entity", "sensor", "state", "value", "type":
			continue // header row
		}
		state := strings.TrimSpace(match[2])
		if state == "" || state == "N/A" || state == "n/a" || state == "-" {
			continue
		}
		add(strings.ToLower(strings.ReplaceAll(name, " ", "_")), state)
	}

	return sensors
}

// fetchEvents reads the first chunk of the board's /events SSE stream and
// parses any entity state events in it.
func (m *MetadataClient) fetchEvents(ctx context.Context, host string, webPort int, username, password string) ([]model.Sensor, error) {
	url := fmt.Sprintf("http://%s/events", net.JoinHostPort(host, fmt.Sprintf("%d", webPort)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if username != "" && password != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("events endpoint returned %d", resp.StatusCode)
	}

	// Read a single chunk; the stream never ends on its own.
	chunk := make([]byte, 8192)
	n, err := io.ReadFull(resp.Body, chunk)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}

	var sensors []model.Sensor
	seen := map[string]bool{}
	for _, line := range strings.Split(string(chunk[:n]), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var event struct {
			ID    string `json:"id"`
			State string `json:"state"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(line[5:])), &event); err != nil {
			continue
		}
		if event.ID == "" || seen[event.ID] {
			continue
		}
		stateText := event.State
		if stateText == "" {
			stateText = event.Value
		}
		state, unit := splitStateUnit(stateText)
		sensors = append(sensors, model.Sensor{
			ID:    event.ID,
			Name:  titleCase(event.ID),
			State: state,
			Unit:  unit,
		})
		seen[event.ID] = true
	}
	return sensors, nil
}

// splitStateUnit splits "22.5 °C" into ("22.5", "°C"). States without a
// recognisable numeric value come back unchanged with an empty unit.
func splitStateUnit(stateText string) (string, string) {
	stateText = strings.TrimSpace(stateText)
	if match := stateUnitPattern.FindStringSubmatch(stateText); match != nil {
		return match[1], match[2]
	}
	return stateText, ""
}

func titleCase(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
