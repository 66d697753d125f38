package gitcaptain

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/git-captain/git-captain/internal/batch"
	"github.com/gorilla/websocket"
)

type streamMessage struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func TestBatchStreamSendsRowsThenSummary(t *testing.T) {
	env := newTestEnv(t, map[string]upstreamAnswer{
		"GET /repos/acme/a/git/refs/heads/x": {http.StatusOK, `{}`},
	}, 100)
	server := httptest.NewServer(env.engine)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/gitCaptain/batch/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v (response %v)", err, resp)
	}
	defer func() { _ = conn.Close() }()

	if err = conn.WriteJSON(map[string]any{
		"id":   "b1",
		"type": "batch",
		"payload": map[string]any{
			"operation": "searchBranch",
			"repos":     []string{"a", "b"},
			"branch":    "x",
			"token":     "t",
		},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var rows []batch.Row
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg streamMessage
		if err = conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.ID != "b1" {
			t.Fatalf("message id = %q", msg.ID)
		}
		if msg.Type == "row" {
			var row batch.Row
			if err = json.Unmarshal(msg.Payload, &row); err != nil {
				t.Fatalf("decode row: %v", err)
			}
			rows = append(rows, row)
			continue
		}
		if msg.Type != "summary" {
			t.Fatalf("unexpected %s message: %s", msg.Type, msg.Payload)
		}
		var summary batch.Summary
		if err = json.Unmarshal(msg.Payload, &summary); err != nil {
			t.Fatalf("decode summary: %v", err)
		}
		if !summary.Complete || summary.Rows != 2 {
			t.Fatalf("summary = %+v", summary)
		}
		break
	}
	if len(rows) != 2 || rows[0].Status != batch.StatusFound || rows[1].Status != batch.StatusNotFound {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestBatchStreamRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, nil, 100)
	server := httptest.NewServer(env.engine)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/gitCaptain/batch/stream"
	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected the upgrade to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %v", resp)
	}
}
