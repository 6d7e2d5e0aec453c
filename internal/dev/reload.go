package dev

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/preload/pkg/preload"
)

// EventType identifies a message pushed to the dev client.
type EventType string

const (
	// EventConfig announces a newly resolved configuration. It also clears
	// any error overlay.
	EventConfig EventType = "config"

	// EventReload asks the page to reload after a watched file changed.
	EventReload EventType = "reload"

	// EventError shows a rejected configuration.
	EventError EventType = "error"
)

// Event is sent to browsers over the reload websocket.
type Event struct {
	Type       EventType    `json:"type"`
	Generation uint64       `json:"generation,omitempty"`
	Mode       preload.Mode `json:"mode,omitempty"`
	Routes     []string     `json:"routes,omitempty"`
	Changed    []string     `json:"changed,omitempty"`
	Error      string       `json:"error,omitempty"`
}

const (
	clientQueue = 16
	writeWait   = 5 * time.Second
)

// hubClient is one connected browser. Its queue is drained by a dedicated
// writer goroutine.
type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to connected dev clients. While the configuration is
// rejected, the last error is replayed to every browser that connects, so
// a reloaded page shows the overlay again.
type Hub struct {
	mu       sync.Mutex
	clients  map[*hubClient]struct{}
	lastErr  []byte
	closed   bool
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and keeps the client registered until the
// connection drops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, clientQueue)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.lastErr != nil {
		c.send <- h.lastErr
	}
	h.mu.Unlock()

	go c.writeLoop()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (c *hubClient) writeLoop() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// remove unregisters c and stops its writer. Must be safe to call twice.
func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish queues ev for every client and returns how many received it.
// Clients whose queue is full are dropped; their page reconnects.
func (h *Hub) Publish(ev Event) int {
	data, err := json.Marshal(ev)
	if err != nil {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if ev.Type == EventError {
		h.lastErr = data
	} else if ev.Type == EventConfig {
		h.lastErr = nil
	}

	sent := 0
	for c := range h.clients {
		select {
		case c.send <- data:
			sent++
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
	return sent
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// DevClientScript is the hot reload client injected into proxied HTML.
const DevClientScript = `
<script>
(function() {
    'use strict';

    var reconnectDelay = 1000;
    var maxReconnectDelay = 30000;
    var ws = null;

    function connect() {
        var protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
        ws = new WebSocket(protocol + '//' + location.host + '` + ReloadPath + `');

        ws.onopen = function() {
            console.log('[preload] dev server connected');
            reconnectDelay = 1000;
        };

        ws.onmessage = function(e) {
            var msg;
            try {
                msg = JSON.parse(e.data);
            } catch (err) {
                return;
            }

            switch (msg.type) {
                case 'config':
                    clearErrorOverlay();
                    console.info('[preload] config #' + msg.generation + ' (' + msg.mode + ', ' +
                        (msg.routes || []).length + ' routes)', msg.routes || []);
                    location.reload();
                    break;

                case 'reload':
                    console.info('[preload] changed:', (msg.changed || []).join(', '));
                    location.reload();
                    break;

                case 'error':
                    console.error('[preload] config error:', msg.error);
                    showErrorOverlay(msg.error);
                    break;
            }
        };

        ws.onclose = function() {
            setTimeout(function() {
                reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
                connect();
            }, reconnectDelay);
        };

        ws.onerror = function() {
            ws.close();
        };
    }

    function showErrorOverlay(error) {
        clearErrorOverlay();

        var overlay = document.createElement('div');
        overlay.id = 'preload-error-overlay';
        overlay.style.cssText = 'position:fixed;top:0;left:0;right:0;bottom:0;background:rgba(0,0,0,0.9);color:#fff;font-family:monospace;font-size:14px;padding:20px;overflow:auto;z-index:999999;';

        var title = document.createElement('h2');
        title.style.cssText = 'color:#ff5555;margin:0 0 20px;';
        title.textContent = 'Preload Config Error';

        var pre = document.createElement('pre');
        pre.style.cssText = 'white-space:pre-wrap;word-wrap:break-word;background:#1a1a1a;padding:20px;border-radius:8px;border:1px solid #333;';
        pre.textContent = error;

        var hint = document.createElement('p');
        hint.style.cssText = 'margin-top:20px;color:#888;';
        hint.textContent = 'The previous configuration is still active. Fix the file and save to reload.';

        overlay.appendChild(title);
        overlay.appendChild(pre);
        overlay.appendChild(hint);
        document.body.appendChild(overlay);
    }

    function clearErrorOverlay() {
        var overlay = document.getElementById('preload-error-overlay');
        if (overlay) {
            overlay.remove();
        }
    }

    if (document.readyState === 'loading') {
        document.addEventListener('DOMContentLoaded', connect);
    } else {
        connect();
    }
})();
</script>
`
