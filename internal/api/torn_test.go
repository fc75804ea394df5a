package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"xp-ledger/internal/config"
	"xp-ledger/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *TornClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTornClient(&config.Config{APIBaseURL: srv.URL})
}

func TestGetAttacks(t *testing.T) {
	var gotPath, gotSelections, gotKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSelections = r.URL.Query().Get("selections")
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"attacks":{
			"20":{"code":"b","timestamp_started":1700000100,"attacker_id":9,"attacker_name":"Bobby","defender_id":1,"result":"Lost"},
			"3":{"code":"a","timestamp_started":1700000000,"attacker_id":"9","attacker_name":"Bob","defender_id":1,"result":"Lost"},
			"100":{"code":"c","attacker_id":"","attacker_name":"","defender_id":1,"result":"Hospitalized"}
		}}`))
	})

	encounters, err := client.GetAttacks(context.Background(), 1, "s3cret key")
	require.NoError(t, err)

	assert.Equal(t, "/user/1", gotPath)
	assert.Equal(t, "attacks", gotSelections)
	assert.Equal(t, "s3cret key", gotKey)

	require.Len(t, encounters, 3)
	assert.Equal(t, "a", encounters[0].Code)
	assert.Equal(t, "b", encounters[1].Code)
	assert.Equal(t, "c", encounters[2].Code)
	assert.Equal(t, domain.PlayerID(9), encounters[0].AttackerID)
	assert.Equal(t, "Bob", encounters[0].AttackerName)
	assert.Equal(t, domain.PlayerID(0), encounters[2].AttackerID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), encounters[0].StartedAt)
	assert.True(t, encounters[2].StartedAt.IsZero())

	stats := client.Stats()
	assert.Equal(t, 1, stats.Requests)
	assert.Equal(t, 0, stats.Failures)
	assert.Equal(t, http.StatusOK, stats.LastStatus)
}

func TestGetAttacksEmpty(t *testing.T) {
	bodies := map[string]string{
		"empty object": `{"attacks":{}}`,
		"empty array":  `{"attacks":[]}`,
		"missing":      `{}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			encounters, err := client.GetAttacks(context.Background(), 1, "k")
			require.NoError(t, err)
			assert.NotNil(t, encounters)
			assert.Empty(t, encounters)
		})
	}
}

func TestGetAttacksTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetAttacks(context.Background(), 1, "k")
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusBadGateway, transportErr.StatusCode)
	assert.Equal(t, "HTTP 502", err.Error())
	assert.True(t, IsTransportError(err))
	assert.False(t, IsAPIError(err))
	assert.Equal(t, 1, client.Stats().Failures)
}

func TestGetAttacksAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":2,"error":"Incorrect key"}}`))
	})

	_, err := client.GetAttacks(context.Background(), 1, "bad")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 2, apiErr.Code)
	assert.Equal(t, "Incorrect key", err.Error())
	assert.True(t, IsAPIError(err))
	assert.False(t, IsTransportError(err))
}

func TestGetAttacksMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.GetAttacks(context.Background(), 1, "k")
	require.Error(t, err)
	assert.False(t, IsAPIError(err))
	assert.False(t, IsTransportError(err))
}

func TestCompareAttackKeys(t *testing.T) {
	assert.Equal(t, -1, compareAttackKeys("3", "20"))
	assert.Equal(t, 1, compareAttackKeys("100", "20"))
	assert.Equal(t, 0, compareAttackKeys("7", "7"))
	assert.Equal(t, -1, compareAttackKeys("7", "x"))
	assert.Equal(t, 1, compareAttackKeys("x", "7"))
	assert.Equal(t, -1, compareAttackKeys("a", "b"))
}
