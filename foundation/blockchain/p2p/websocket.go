package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"sort"
	"sync"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/consensus"
	"github.com/gorilla/websocket"
)

// Path is the route peers connect to.
const Path = "/v1/p2p"

// Set of connection timings.
const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 2 * pingPeriod
)

// WebSocketConfig represents the configuration of the websocket transport.
type WebSocketConfig struct {
	NodeID       string
	Host         string            // host:port peers use to reach this node.
	OnDisconnect func(host string) // Called when a peer connection ends.
	EvHandler    func(v string, args ...any)
}

// WebSocket exchanges messages with peers over websocket connections. It
// implements the consensus.Transport interface.
type WebSocket struct {
	cfg       WebSocketConfig
	evHandler func(v string, args ...any)
	dialer    websocket.Dialer
	upgrader  websocket.Upgrader

	mu       sync.RWMutex
	conns    map[string]*conn
	handlers map[consensus.MessageKind]consensus.HandlerFunc

	wg sync.WaitGroup
}

// NewWebSocket constructs a websocket transport.
func NewWebSocket(cfg WebSocketConfig) *WebSocket {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &WebSocket{
		cfg:       cfg,
		evHandler: ev,
		dialer: websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns:    make(map[string]*conn),
		handlers: make(map[consensus.MessageKind]consensus.HandlerFunc),
	}
}

// Dial connects to the peer at host. The host must be in host:port form.
// It satisfies the peer.DialFunc type.
func (ws *WebSocket) Dial(ctx context.Context, host string) error {
	url := fmt.Sprintf("ws://%s%s?host=%s", host, Path, neturl.QueryEscape(ws.cfg.Host))

	c, resp, err := ws.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", host, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	ws.add(host, c)

	ws.evHandler("p2p: Dial: connected: peer[%s]", host)

	return nil
}

// Accept upgrades an inbound request into a peer connection. The caller
// provides the host the peer is reachable at.
func (ws *WebSocket) Accept(w http.ResponseWriter, r *http.Request, host string) error {
	c, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	ws.add(host, c)

	ws.evHandler("p2p: Accept: connected: peer[%s]", host)

	return nil
}

// Broadcast sends the message to every connected peer. A failing peer is
// disconnected and the remaining peers still receive the message.
func (ws *WebSocket) Broadcast(kind consensus.MessageKind, data json.RawMessage) error {
	msg := consensus.Message{
		Kind: kind,
		Data: data,
	}

	ws.mu.RLock()
	conns := make([]*conn, 0, len(ws.conns))
	for _, c := range ws.conns {
		conns = append(conns, c)
	}
	ws.mu.RUnlock()

	var errs []error
	for _, c := range conns {
		if err := c.write(msg); err != nil {
			errs = append(errs, fmt.Errorf("peer %s: %w", c.host, err))
			ws.remove(c)
		}
	}

	return errors.Join(errs...)
}

// Handle registers the handler for the message kind.
func (ws *WebSocket) Handle(kind consensus.MessageKind, fn consensus.HandlerFunc) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.handlers[kind] = fn
}

// Peers returns the hosts of the connected peers.
func (ws *WebSocket) Peers() []string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	hosts := make([]string, 0, len(ws.conns))
	for host := range ws.conns {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	return hosts
}

// Close disconnects every peer and waits for the readers to stop.
func (ws *WebSocket) Close() {
	ws.mu.Lock()
	conns := ws.conns
	ws.conns = make(map[string]*conn)
	ws.mu.Unlock()

	for _, c := range conns {
		c.close()
	}

	ws.wg.Wait()
}

// =============================================================================

// add registers the connection and starts its reader and pinger.
func (ws *WebSocket) add(host string, wc *websocket.Conn) {
	c := &conn{
		host: host,
		ws:   wc,
		done: make(chan struct{}),
	}

	ws.mu.Lock()
	if old, exists := ws.conns[host]; exists {
		old.close()
	}
	ws.conns[host] = c
	ws.mu.Unlock()

	ws.wg.Add(2)

	go func() {
		defer ws.wg.Done()
		ws.read(c)
	}()

	go func() {
		defer ws.wg.Done()
		c.ping()
	}()
}

// remove drops the connection if it is still the registered one for its
// host.
func (ws *WebSocket) remove(c *conn) {
	ws.mu.Lock()
	current, exists := ws.conns[c.host]
	if exists && current == c {
		delete(ws.conns, c.host)
	}
	ws.mu.Unlock()

	c.close()

	if exists && current == c && ws.cfg.OnDisconnect != nil {
		ws.cfg.OnDisconnect(c.host)
	}
}

// read dispatches the inbound messages of the connection until it fails.
func (ws *WebSocket) read(c *conn) {
	defer ws.remove(c)

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg consensus.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.evHandler("p2p: read: peer[%s]: ERROR: %s", c.host, err)
			}
			return
		}

		ws.mu.RLock()
		fn, exists := ws.handlers[msg.Kind]
		ws.mu.RUnlock()

		if !exists {
			ws.evHandler("p2p: read: peer[%s]: WARNING: no handler for %s", c.host, msg.Kind)
			continue
		}

		fn(msg.Data)
	}
}

// =============================================================================

// conn wraps a websocket connection. Writes are serialized since the
// websocket package supports a single concurrent writer.
type conn struct {
	host string
	ws   *websocket.Conn

	wmu  sync.Mutex
	once sync.Once
	done chan struct{}
}

func (c *conn) write(msg consensus.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

func (c *conn) ping() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.wmu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
			c.wmu.Unlock()

			if err != nil {
				c.close()
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}
