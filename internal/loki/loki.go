package loki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Log lines counted by the stats queries. They must match the messages logged by the torrent searcher.
const (
	searchCompletedLine = "Torrent search completed"
	searchFailedLine    = "Torrent search failed"
)

// Loki represents an interface for retrieving search statistics from the addon logs.
type Loki interface {
	// GetSearches24 retrieves the total number of torrent searches performed in the last 24 hours.
	GetSearches24(ctx context.Context) (int, error)
	// GetFailedSearches24 retrieves the number of torrent searches that failed in the last 24 hours.
	GetFailedSearches24(ctx context.Context) (int, error)
}

type speculativeLoki struct {
	httpClient  *http.Client
	lokiHost    string
	serviceName string
}

// NewLoki creates a Loki client querying the logs of serviceName.
func NewLoki(lokiHost, serviceName string) Loki {
	return &speculativeLoki{
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
		lokiHost:    lokiHost,
		serviceName: serviceName,
	}
}

// GetSearches24 retrieves the total number of torrent searches performed in the last 24 hours.
func (s *speculativeLoki) GetSearches24(ctx context.Context) (int, error) {
	completed, err := s.countLokiLogs(ctx, searchCompletedLine)
	if err != nil {
		return 0, err
	}
	failed, err := s.countLokiLogs(ctx, searchFailedLine)
	if err != nil {
		return 0, err
	}
	return completed + failed, nil
}

// GetFailedSearches24 retrieves the number of torrent searches that failed in the last 24 hours.
func (s *speculativeLoki) GetFailedSearches24(ctx context.Context) (int, error) {
	return s.countLokiLogs(ctx, searchFailedLine)
}

func (s *speculativeLoki) countLokiLogs(ctx context.Context, search string) (int, error) {
	query := fmt.Sprintf("sum(count_over_time({service_name=%q} |= %q [24h]))", s.serviceName, search)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.lokiHost+"/loki/api/v1/query", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}

	q := req.URL.Query()
	q.Add("query", query)
	req.URL.RawQuery = q.Encode()

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("invalid status code: %d", resp.StatusCode)
	}

	var lokiResp Response
	if err := json.NewDecoder(resp.Body).Decode(&lokiResp); err != nil {
		return 0, fmt.Errorf("failed to json.Decoder.Decode: %w", err)
	}

	if lokiResp.Status != "success" {
		return 0, fmt.Errorf("loki response status: %s", lokiResp.Status)
	}

	if lokiResp.Data.ResultType != "vector" {
		return 0, fmt.Errorf("loki response data result type: %s", lokiResp.Data.ResultType)
	}

	// no matching lines in the window
	if len(lokiResp.Data.Result) == 0 {
		return 0, nil
	}

	if len(lokiResp.Data.Result) != 1 {
		return 0, fmt.Errorf("loki response data result length: %d", len(lokiResp.Data.Result))
	}

	if len(lokiResp.Data.Result[0].Value) != 2 {
		return 0, fmt.Errorf("loki response data result value length: %d", len(lokiResp.Data.Result[0].Value))
	}

	value, ok := (lokiResp.Data.Result[0].Value[1]).(string)
	if !ok {
		return 0, fmt.Errorf("failed to assert value to string: %v", lokiResp.Data.Result[0].Value[1])
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to strconv.Atoi: %w", err)
	}

	return i, nil
}

// Response is the body of a Loki instant query.
type Response struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []any             `json:"value"`
		} `json:"result"`
	} `json:"data"`
}
