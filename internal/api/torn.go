package api

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"xp-ledger/internal/config"
	"xp-ledger/internal/constants"
	"xp-ledger/internal/domain"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AttackFetcher is what the ledger service needs from the game API.
type AttackFetcher interface {
	GetAttacks(ctx context.Context, id domain.PlayerID, key string) ([]domain.Encounter, error)
}

type TornClient struct {
	baseURL string
	client  *fasthttp.Client
	statsMu sync.RWMutex
	stats   RequestStats
}

type RequestStats struct {
	Requests   int       `json:"requests"`
	Failures   int       `json:"failures"`
	LastStatus int       `json:"last_status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewTornClient(cfg *config.Config) *TornClient {
	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultAPIBaseURL
	}
	return &TornClient{
		baseURL: baseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     constants.APIMaxConnsPerHost,
			ReadTimeout:         constants.APIReadTimeout,
			WriteTimeout:        constants.APIWriteTimeout,
			MaxIdleConnDuration: constants.APIMaxIdleConnDuration,
		},
	}
}

func (c *TornClient) Stats() RequestStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

func (c *TornClient) record(status int, failed bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	c.stats.Requests++
	if failed {
		c.stats.Failures++
	}
	c.stats.LastStatus = status
	c.stats.UpdatedAt = time.Now()
}

// GetAttacks downloads the attack log of the given user. An empty log is
// not an error.
func (c *TornClient) GetAttacks(ctx context.Context, id domain.PlayerID, key string) ([]domain.Encounter, error) {
	u := fmt.Sprintf("%s/user/%s?selections=attacks&key=%s", c.baseURL, id, url.QueryEscape(key))

	resp, err := doRequest[AttacksResponse](ctx, c, u)
	if err != nil {
		return nil, err
	}
	return resp.Encounters()
}

func doRequest[T any](ctx context.Context, client *TornClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			client.record(0, true)
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			client.record(0, true)
			return nil, err
		}
	}

	status := resp.StatusCode()
	if status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices {
		client.record(status, true)
		return nil, &TransportError{StatusCode: status}
	}

	// the API reports bad keys and similar with 200 and an error object
	var envelope errorEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		client.record(status, true)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Error != nil {
		client.record(status, true)
		return nil, &APIError{Code: envelope.Error.Code, Message: envelope.Error.Error}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		client.record(status, true)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	client.record(status, false)
	return &result, nil
}

type errorEnvelope struct {
	Error *ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

type AttacksResponse struct {
	// keyed by attack id; an empty log may arrive as [] instead of {}
	Attacks jsoniter.RawMessage `json:"attacks"`
}

type AttackRecord struct {
	Code             string          `json:"code"`
	TimestampStarted int64           `json:"timestamp_started"`
	TimestampEnded   int64           `json:"timestamp_ended"`
	AttackerID       domain.PlayerID `json:"attacker_id"`
	AttackerName     string          `json:"attacker_name"`
	DefenderID       domain.PlayerID `json:"defender_id"`
	DefenderName     string          `json:"defender_name"`
	Result           string          `json:"result"`
}

// Encounters flattens the keyed attack map in ascending attack id order.
func (r *AttacksResponse) Encounters() ([]domain.Encounter, error) {
	raw := bytes.TrimSpace(r.Attacks)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || raw[0] == '[' {
		return []domain.Encounter{}, nil
	}

	var records map[string]AttackRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode attacks: %w", err)
	}

	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareAttackKeys)

	encounters := make([]domain.Encounter, 0, len(keys))
	for _, k := range keys {
		rec := records[k]
		encounters = append(encounters, domain.Encounter{
			Code:         rec.Code,
			DefenderID:   rec.DefenderID,
			DefenderName: rec.DefenderName,
			AttackerID:   rec.AttackerID,
			AttackerName: rec.AttackerName,
			Result:       rec.Result,
			StartedAt:    unixOrZero(rec.TimestampStarted),
			EndedAt:      unixOrZero(rec.TimestampEnded),
		})
	}
	return encounters, nil
}

func compareAttackKeys(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if na < nb {
			return -1
		}
		if na > nb {
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func unixOrZero(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
