package lightning

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lightning-paywall.backend/internal/domain/entities"
	"lightning-paywall.backend/pkg/logger"
)

const eventStreamReconnectDelay = 5 * time.Second

// RestClient talks to the payment backend's node daemon over its REST API.
// Settlement events arrive on a server-sent event stream consumed by a
// background goroutine per registered listener.
type RestClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu        sync.Mutex
	listeners map[string]*streamSubscription
	closed    bool
}

type streamSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRestClient creates a client for the backend daemon at baseURL.
func NewRestClient(baseURL, apiKey string, timeout time.Duration) *RestClient {
	return &RestClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		listeners:  make(map[string]*streamSubscription),
	}
}

// Ping checks daemon liveness; used as the connect probe.
func (c *RestClient) Ping(ctx context.Context) error {
	return c.makeRequest(ctx, http.MethodGet, "/v1/info", nil, nil)
}

func (c *RestClient) FetchReceiveLimits(ctx context.Context) (*ReceiveLimits, error) {
	var limits ReceiveLimits
	if err := c.makeRequest(ctx, http.MethodGet, "/v1/limits/receive", nil, &limits); err != nil {
		return nil, err
	}
	return &limits, nil
}

func (c *RestClient) PrepareReceive(ctx context.Context, amountSat uint64) (*PrepareReceiveResponse, error) {
	body := map[string]interface{}{"amountSat": amountSat}
	var prepared PrepareReceiveResponse
	if err := c.makeRequest(ctx, http.MethodPost, "/v1/receive/prepare", body, &prepared); err != nil {
		return nil, err
	}
	return &prepared, nil
}

func (c *RestClient) Receive(ctx context.Context, prepared *PrepareReceiveResponse, description string) (*ReceiveResponse, error) {
	body := map[string]interface{}{
		"amountSat":   prepared.AmountSat,
		"feesSat":     prepared.FeesSat,
		"description": description,
	}
	var resp ReceiveResponse
	if err := c.makeRequest(ctx, http.MethodPost, "/v1/receive", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RestClient) ParseInvoice(ctx context.Context, input string) (*ParsedInvoice, error) {
	body := map[string]interface{}{"input": input}
	var parsed ParsedInvoice
	if err := c.makeRequest(ctx, http.MethodPost, "/v1/parse", body, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *RestClient) RecommendedFees(ctx context.Context) (*RecommendedFees, error) {
	var fees RecommendedFees
	if err := c.makeRequest(ctx, http.MethodGet, "/v1/fees/recommended", nil, &fees); err != nil {
		return nil, err
	}
	return &fees, nil
}

func (c *RestClient) RegisterWebhook(ctx context.Context, url string) error {
	body := map[string]interface{}{"url": url}
	return c.makeRequest(ctx, http.MethodPost, "/v1/webhooks", body, nil)
}

// AddEventListener subscribes the listener to the backend event stream and
// returns the subscription id.
func (c *RestClient) AddEventListener(listener EventListener) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", fmt.Errorf("client is disconnected")
	}

	id := uuid.New().String()
	streamCtx, cancel := context.WithCancel(context.Background())
	sub := &streamSubscription{cancel: cancel, done: make(chan struct{})}
	c.listeners[id] = sub

	go c.consumeEventStream(streamCtx, sub, listener)
	return id, nil
}

func (c *RestClient) RemoveEventListener(id string) error {
	c.mu.Lock()
	sub, ok := c.listeners[id]
	delete(c.listeners, id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown listener: %s", id)
	}
	sub.cancel()
	<-sub.done
	return nil
}

func (c *RestClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	subs := make([]*streamSubscription, 0, len(c.listeners))
	for id, sub := range c.listeners {
		subs = append(subs, sub)
		delete(c.listeners, id)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		select {
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// consumeEventStream reads the SSE stream and dispatches decoded events,
// reconnecting with a delay until the subscription is cancelled.
func (c *RestClient) consumeEventStream(ctx context.Context, sub *streamSubscription, listener EventListener) {
	defer close(sub.done)

	for {
		if err := c.readEventStream(ctx, listener); err != nil && ctx.Err() == nil {
			logger.Warn(ctx, "Event stream interrupted, reconnecting",
				zap.Error(err), zap.Duration("delay", eventStreamReconnectDelay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(eventStreamReconnectDelay):
		}
	}
}

func (c *RestClient) readEventStream(ctx context.Context, listener EventListener) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	// Streaming request: no overall client timeout.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return &TransportError{Op: "events", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event entities.ProviderEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			logger.Warn(ctx, "Dropping undecodable backend event", zap.Error(err))
			continue
		}
		listener.OnEvent(event)
	}
	if err := scanner.Err(); err != nil {
		return &TransportError{Op: "events", Err: err}
	}
	return io.EOF
}

func (c *RestClient) makeRequest(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &TransportError{Op: method + " " + endpoint, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend rejected %s %s: status %d: %s", method, endpoint, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, endpoint, err)
	}
	return nil
}
