package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/server"
)

var httpClient = &http.Client{Timeout: 90 * time.Second}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	var response models.SearchResponse
	if err := doJSON(http.MethodPost, serverURL+"/api/v1/search", body, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

type keywordResponse struct {
	Query string              `json:"query"`
	Hits  []server.KeywordHit `json:"hits"`
	Total int                 `json:"total"`
}

func keywordViaHTTP(serverURL, query string, limit int) (*keywordResponse, error) {
	v := url.Values{"q": {query}, "limit": {strconv.Itoa(limit)}}
	var out keywordResponse
	if err := doJSON(http.MethodGet, serverURL+"/api/v1/keyword?"+v.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func statusViaHTTP(serverURL string) (*server.StatusResponse, error) {
	var s server.StatusResponse
	if err := doJSON(http.MethodGet, serverURL+"/api/v1/status", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func reloadViaHTTP(serverURL string) error {
	return doJSON(http.MethodPost, serverURL+"/api/v1/reload", nil, nil)
}

func doJSON(method, target string, body []byte, out any) error {
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
