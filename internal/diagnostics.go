package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/ogero/stremio-speculative/internal/common"
	"github.com/ogero/stremio-speculative/internal/loki"
)

// Stats holds the search counters of the last 24 hours, derived from the addon logs.
type Stats struct {
	// SearchesCount24 is the number of torrent searches performed in the last 24 hours.
	SearchesCount24 int `json:"searchesCount24"`
	// FailedSearchesCount24 is the number of those searches that failed.
	FailedSearchesCount24 int `json:"failedSearchesCount24"`
}

// DiagnosticsMessage is the payload published on the diagnostics channel.
type DiagnosticsMessage struct {
	Type   string         `json:"type"`
	Search *SearchOutcome `json:"search,omitempty"`
	Stats  *Stats         `json:"stats,omitempty"`
}

// Diagnostics message types.
const (
	DiagnosticsTypeSearch = "search"
	DiagnosticsTypeStats  = "stats"
)

// DiagnosticsService publishes search outcomes and 24h stats to websocket subscribers.
type DiagnosticsService interface {
	// Handler serves the websocket endpoint
	http.Handler
	SearchReporter
	// BroadcastStats stores stats as the latest value and publishes it.
	BroadcastStats(stats Stats) error
	// StartPollingStats fetches stats from Loki every interval and broadcasts them until ctx is done.
	StartPollingStats(ctx context.Context, interval time.Duration)
	// Shutdown stops the websocket node.
	Shutdown(ctx context.Context) error
}

type diagnosticsService struct {
	channel string
	loki    loki.Loki

	node             *centrifuge.Node
	websocketHandler *centrifuge.WebsocketHandler
	statsMutex       sync.Mutex
	stats            Stats
}

// NewDiagnosticsService creates and starts a DiagnosticsService publishing on channel.
// lokiClient may be nil, in which case StartPollingStats returns immediately.
func NewDiagnosticsService(channel string, lokiClient loki.Loki) (DiagnosticsService, error) {
	svc := &diagnosticsService{
		channel: channel,
		loki:    lokiClient,
	}

	node, err := centrifuge.New(centrifuge.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to centrifuge.New: %w", err)
	}
	svc.node = node

	node.OnConnecting(func(ctx context.Context, e centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
		return centrifuge.ConnectReply{}, nil
	})

	node.OnConnect(func(client *centrifuge.Client) {
		client.OnSubscribe(func(e centrifuge.SubscribeEvent, cb centrifuge.SubscribeCallback) {
			if e.Channel != channel {
				cb(centrifuge.SubscribeReply{}, centrifuge.ErrorPermissionDenied)
				return
			}

			cb(centrifuge.SubscribeReply{}, nil)

			// Late subscribers get the latest stats without waiting for the next poll.
			go func() {
				b, err := svc.encode(DiagnosticsMessage{Type: DiagnosticsTypeStats, Stats: svc.latestStats()})
				if err != nil {
					common.Log.Warn("Failed to encode stats", "err", err)
					return
				}
				if err := client.Send(b); err != nil {
					common.Log.Warn("Failed to centrifuge.Client.Send", "err", err)
				}
			}()
		})
	})

	if err := node.Run(); err != nil {
		return nil, fmt.Errorf("failed to centrifuge.Node.Run: %w", err)
	}

	svc.websocketHandler = centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		ReadBufferSize:     1024,
		UseWriteBufferPool: true,
	})

	return svc, nil
}

// ReportSearch publishes a search outcome. Publishing failures are only logged.
func (s *diagnosticsService) ReportSearch(ctx context.Context, outcome SearchOutcome) {
	if err := s.publish(DiagnosticsMessage{Type: DiagnosticsTypeSearch, Search: &outcome}); err != nil {
		common.Log.WarnContext(ctx, "Failed to publish search outcome", "err", err)
	}
}

// BroadcastStats stores stats as the latest value and publishes it.
func (s *diagnosticsService) BroadcastStats(stats Stats) error {
	s.statsMutex.Lock()
	s.stats = stats
	s.statsMutex.Unlock()

	return s.publish(DiagnosticsMessage{Type: DiagnosticsTypeStats, Stats: &stats})
}

// StartPollingStats fetches stats from Loki every interval and broadcasts them until ctx is done.
func (s *diagnosticsService) StartPollingStats(ctx context.Context, interval time.Duration) {
	if s.loki == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.pollStats(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *diagnosticsService) pollStats(ctx context.Context) {
	stats := *s.latestStats()

	searches, err := s.loki.GetSearches24(ctx)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to loki.Loki.GetSearches24", "err", err)
	} else {
		stats.SearchesCount24 = searches
	}

	failed, err := s.loki.GetFailedSearches24(ctx)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to loki.Loki.GetFailedSearches24", "err", err)
	} else {
		stats.FailedSearchesCount24 = failed
	}

	if err := s.BroadcastStats(stats); err != nil {
		common.Log.WarnContext(ctx, "Failed to internal.DiagnosticsService.BroadcastStats", "err", err)
	}
}

// ServeHTTP handles incoming HTTP requests via a websocket handler
func (s *diagnosticsService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	newCtx := centrifuge.SetCredentials(r.Context(), &centrifuge.Credentials{})
	s.websocketHandler.ServeHTTP(w, r.WithContext(newCtx))
}

// Shutdown stops the websocket node.
func (s *diagnosticsService) Shutdown(ctx context.Context) error {
	return s.node.Shutdown(ctx)
}

func (s *diagnosticsService) latestStats() *Stats {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()
	stats := s.stats
	return &stats
}

func (s *diagnosticsService) publish(msg DiagnosticsMessage) error {
	b, err := s.encode(msg)
	if err != nil {
		return err
	}

	if _, err := s.node.Publish(s.channel, b); err != nil {
		return fmt.Errorf("failed to centrifuge.Node.Publish: %w", err)
	}

	return nil
}

func (s *diagnosticsService) encode(msg DiagnosticsMessage) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to json.Marshal: %w", err)
	}
	return b, nil
}
