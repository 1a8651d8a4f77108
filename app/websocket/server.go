package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	log "github.com/sirupsen/logrus"
)

// ClientType identifies what kind of display connected.
type ClientType string

const (
	ClientPOS     ClientType = "pos"
	ClientKitchen ClientType = "kitchen"
	ClientDisplay ClientType = "display"
)

// Client is one connected listener.
type Client struct {
	ID          string
	Type        ClientType
	Connection  *websocket.Conn
	Send        chan []byte
	server      *Server
	ConnectedAt time.Time
	RemoteAddr  string
}

// Server is the notification hub. It pushes events to connected kitchen
// displays and dashboards; clients only listen, the hub never accepts
// commands over the socket. Delivery is best effort: a client that cannot
// keep up is dropped.
type Server struct {
	clients    map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	upgrader   websocket.Upgrader
	mu         sync.RWMutex

	port         string
	announceMDNS bool
	rest         *RESTHandlers
	httpServer   *http.Server
	mdnsShutdown chan struct{}
	done         chan struct{}
	stopOnce     sync.Once
}

// NewServer creates the hub. Start must be called before clients can connect.
func NewServer(port string, announceMDNS bool) *Server {
	return &Server{
		clients:      make(map[string]*Client),
		broadcast:    make(chan []byte, 64),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		port:         port,
		announceMDNS: announceMDNS,
		mdnsShutdown: make(chan struct{}),
		done:         make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Displays live on the cafe LAN; no origin restriction.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetRESTHandlers attaches the HTTP API. Must be called before Start.
func (s *Server) SetRESTHandlers(rest *RESTHandlers) {
	s.rest = rest
}

// Broadcast fans a message out to every connected client.
func (s *Server) Broadcast(message []byte) {
	select {
	case s.broadcast <- message:
	default:
		log.Warn("hub broadcast queue full, dropping message")
	}
}

// Start runs the hub loop and serves /ws and /health. Blocks until the HTTP
// server exits.
func (s *Server) Start() error {
	go s.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if s.rest != nil {
		s.rest.Register(mux)
	}
	s.httpServer = &http.Server{Addr: s.port, Handler: mux}

	if s.announceMDNS {
		go s.startMDNS()
	}

	log.WithField("port", s.port).Info("notification hub listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// startMDNS announces the hub on the local network so displays can find it
// without configuration.
func (s *Server) startMDNS() {
	portStr := strings.TrimPrefix(s.port, ":")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.WithField("port", s.port).Warn("mDNS: cannot parse port, skipping announcement")
		return
	}

	server, err := zeroconf.Register(
		"CafePos Hub",
		"_cafepos._tcp",
		"local.",
		port,
		[]string{"version=1.0"},
		nil,
	)
	if err != nil {
		log.WithError(err).Warn("mDNS: registration failed")
		return
	}
	log.Info("mDNS: hub announced on _cafepos._tcp.local")

	<-s.mdnsShutdown
	server.Shutdown()
	log.Info("mDNS: announcement stopped")
}

// Stop shuts the hub down and disconnects all clients.
func (s *Server) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.mdnsShutdown)
		close(s.done)
	})

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("hub shutdown")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, client := range s.clients {
		delete(s.clients, id)
		close(client.Send)
		client.Connection.Close()
	}
}

func (s *Server) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client.ID] = client
			s.mu.Unlock()
			log.WithFields(log.Fields{
				"client": client.ID,
				"type":   client.Type,
				"addr":   client.RemoteAddr,
			}).Info("client connected")

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client.ID]; ok {
				delete(s.clients, client.ID)
				close(client.Send)
			}
			s.mu.Unlock()
			log.WithField("client", client.ID).Info("client disconnected")

		case message := <-s.broadcast:
			s.mu.Lock()
			for id, client := range s.clients {
				select {
				case client.Send <- message:
				default:
					// Slow consumer, drop it.
					delete(s.clients, id)
					close(client.Send)
				}
			}
			s.mu.Unlock()

		case <-ticker.C:
			s.sendHeartbeat()

		case <-s.done:
			return
		}
	}
}

func (s *Server) sendHeartbeat() {
	beat, _ := json.Marshal(map[string]interface{}{
		"type":      "heartbeat",
		"timestamp": time.Now(),
	})
	s.Broadcast(beat)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientType := ClientType(r.URL.Query().Get("type"))
	if clientType == "" {
		clientType = ClientDisplay
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		ID:          fmt.Sprintf("%s-%s", clientType, uuid.NewString()[:8]),
		Type:        clientType,
		Connection:  conn,
		Send:        make(chan []byte, 256),
		server:      s,
		ConnectedAt: time.Now(),
		RemoteAddr:  r.RemoteAddr,
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	clientCount := len(s.clients)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"clients": clientCount,
		"time":    time.Now(),
	})
}

// readPump drains the client socket so pings and close frames are processed.
// Inbound payloads are ignored.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.Connection.Close()
	}()

	c.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Connection.SetPongHandler(func(string) error {
		c.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Connection.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Debug("websocket read")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
