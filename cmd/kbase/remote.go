package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/kbase/internal/models"
)

var httpClient = &http.Client{Timeout: 120 * time.Second}

// streamClient has no overall timeout; streams end when the server finishes.
var streamClient = &http.Client{}

type sseEvent struct {
	Type    string   `json:"type"`
	Content string   `json:"content,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

func endpoint(serverURL, path string) (string, error) {
	base, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid server URL %q", serverURL)
	}
	return base.String() + path, nil
}

func decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, v)
}

func getJSON(serverURL, path string, v any) error {
	u, err := endpoint(serverURL, path)
	if err != nil {
		return err
	}
	resp, err := httpClient.Get(u)
	if err != nil {
		return err
	}
	return decodeResponse(resp, v)
}

func postJSON(client *http.Client, serverURL, path string, body any) (*http.Response, error) {
	u, err := endpoint(serverURL, path)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return client.Post(u, "application/json", bytes.NewReader(data))
}

func askViaHTTP(serverURL, question string, k int) (*models.Answer, error) {
	resp, err := postJSON(httpClient, serverURL, "/chat", map[string]any{"message": question, "k": k})
	if err != nil {
		return nil, err
	}
	var answer models.Answer
	if err := decodeResponse(resp, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

func askStreamViaHTTP(serverURL, question string, k int, onEvent func(sseEvent) error) error {
	resp, err := postJSON(streamClient, serverURL, "/chat/stream", map[string]any{"message": question, "k": k})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return decodeResponse(resp, &struct{}{})
	}
	defer resp.Body.Close()
	return readSSE(resp.Body, onEvent)
}

// readSSE calls onEvent for every "data:" line in r.
func readSSE(r io.Reader, onEvent func(sseEvent) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var ev sseEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev); err != nil {
			return fmt.Errorf("invalid stream event: %w", err)
		}
		if err := onEvent(ev); err != nil {
			return err
		}
	}
	return sc.Err()
}
