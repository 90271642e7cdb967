package http

import (
	"net/http"

	"github.com/dkeye/voicerelay/internal/app"
	"github.com/dkeye/voicerelay/internal/config"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status string `json:"status"`
	Peers  int    `json:"peers"`
}

type StatusResponse struct {
	Peers      []domain.PeerID `json:"peers"`
	Count      int             `json:"count"`
	JoinPolicy string          `json:"join_policy"`
	Heartbeat  string          `json:"heartbeat"`
}

type PeersResponse struct {
	Peers []domain.PeerID `json:"peers"`
}

type relayHandlers struct {
	dir *app.Directory
	cfg *config.Config
}

func (h *relayHandlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Peers: h.dir.Len()})
}

func (h *relayHandlers) status(c *gin.Context) {
	peers := h.dir.Peers()
	policy := h.cfg.JoinPolicy
	if policy == "" {
		policy = "replace"
	}
	heartbeat := "disabled"
	if h.cfg.PingPeriod > 0 {
		heartbeat = h.cfg.PingPeriod.String()
	}
	c.JSON(http.StatusOK, StatusResponse{
		Peers:      peers,
		Count:      len(peers),
		JoinPolicy: policy,
		Heartbeat:  heartbeat,
	})
}

func (h *relayHandlers) peers(c *gin.Context) {
	c.JSON(http.StatusOK, PeersResponse{Peers: h.dir.Peers()})
}

type AgentHealthResponse struct {
	Status   string `json:"status"`
	PeerID   string `json:"peer_id"`
	Sessions int    `json:"sessions"`
}

type agentHandlers struct {
	id       string
	sessions func() int
}

func (h *agentHandlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, AgentHealthResponse{Status: "ok", PeerID: h.id, Sessions: h.sessions()})
}
