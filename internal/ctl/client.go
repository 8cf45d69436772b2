package ctl

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 5 * time.Second}

// getJSON sends a GET request and decodes the JSON response into dst.
func getJSON(baseURL, path string, dst any) error {
	url := strings.TrimRight(baseURL, "/") + path
	resp, err := httpClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(b))
		if msg != "" {
			return fmt.Errorf("HTTP %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("HTTP %s from %s", resp.Status, path)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// getRaw sends a GET request and returns the status code and body.
func getRaw(baseURL, path string) (int, []byte, error) {
	url := strings.TrimRight(baseURL, "/") + path
	resp, err := httpClient.Get(url)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// httpBase turns a ws:// or wss:// endpoint into the matching http(s) base
// URL so query commands can share the --endpoint flag with watch.
func httpBase(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "ws://"):
		endpoint = "http://" + strings.TrimPrefix(endpoint, "ws://")
	case strings.HasPrefix(endpoint, "wss://"):
		endpoint = "https://" + strings.TrimPrefix(endpoint, "wss://")
	}
	endpoint = strings.TrimRight(endpoint, "/")
	return strings.TrimSuffix(endpoint, "/ws")
}

// printJSON prints v as indented JSON to stdout.
func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
