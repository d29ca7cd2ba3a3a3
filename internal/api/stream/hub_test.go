package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/pipeline"
	"github.com/sabq4org/so7ba.ai/internal/scorecard"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func card(symbol string) contracts.Scorecard {
	return contracts.Scorecard{Candidate: contracts.Candidate{Symbol: symbol}}
}

func readEvent(t *testing.T, conn *websocket.Conn, data interface{}) string {
	t.Helper()

	var raw struct {
		Type string      `json:"type"`
		Data interface{} `json:"data"`
	}
	raw.Data = data
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&raw))
	return raw.Type
}

func TestHub_PublishRun(t *testing.T) {
	hub := NewHub(logger.NewNop())
	conn := dialHub(t, hub)

	run := &pipeline.Run{
		ID:         "run-1",
		MaxScore:   9,
		Scorecards: []contracts.Scorecard{card("TSLA"), card("AAPL")},
		Report: scorecard.Report{
			Calls:     []contracts.Scorecard{card("TSLA")},
			Evaluated: 2,
		},
	}
	hub.PublishRun(context.Background(), run)

	var digest RunDigest
	assert.Equal(t, EventScanRun, readEvent(t, conn, &digest))
	assert.Equal(t, "run-1", digest.RunID)
	assert.Equal(t, 2, digest.Evaluated)
	assert.Equal(t, 9.0, digest.MaxScore)
	require.Len(t, digest.Report.Calls, 1)
	assert.Equal(t, "TSLA", digest.Report.Calls[0].Candidate.Symbol)
}

func TestHub_NotifyMonitor(t *testing.T) {
	hub := NewHub(logger.NewNop())
	conn := dialHub(t, hub)

	hub.NotifyMonitor(context.Background(), &contracts.MonitorReport{
		Trades: []contracts.PositionCheck{{PositionID: 7}},
		Alerts: []contracts.GreeksAlert{{PositionID: 7, Symbol: "NVDA", Kind: "delta_drift"}},
	})

	var report contracts.MonitorReport
	assert.Equal(t, EventMonitor, readEvent(t, conn, &report))
	require.Len(t, report.Trades, 1)
	assert.Equal(t, 7, report.Trades[0].PositionID)

	var alerts []contracts.GreeksAlert
	assert.Equal(t, EventGreeksAlerts, readEvent(t, conn, &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "NVDA", alerts[0].Symbol)
}

func TestHub_NoAlertsNoAlertEvent(t *testing.T) {
	hub := NewHub(logger.NewNop())
	conn := dialHub(t, hub)

	hub.NotifyMonitor(context.Background(), &contracts.MonitorReport{Message: "No open positions"})
	hub.Broadcast("marker", "done")

	assert.Equal(t, EventMonitor, readEvent(t, conn, nil))
	assert.Equal(t, "marker", readEvent(t, conn, nil))
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := NewHub(logger.NewNop())
	conn := dialHub(t, hub)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	// 클라이언트 없이도 안전
	hub.Broadcast("noop", nil)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(logger.NewNop())
	conn := dialHub(t, hub)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "server closes the connection")
}
