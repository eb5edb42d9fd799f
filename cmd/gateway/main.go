// Command gateway is a demo WebSocket transport over the synchronization
// engine: one connection per peer, exchanging wire.SyncSession envelopes
// and relaying presence over Redis pub/sub. Optionally it also advertises
// itself and browses for sibling instances on the LAN over mDNS. It has no
// auth, sessions, or templates; those belong to a real frontend.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/desperadomar/bluelatex/internal/config"
	"github.com/desperadomar/bluelatex/internal/diffsync"
	"github.com/desperadomar/bluelatex/internal/discovery"
	"github.com/desperadomar/bluelatex/internal/logging"
	"github.com/desperadomar/bluelatex/internal/presence"
	"github.com/desperadomar/bluelatex/internal/storeinit"
	"github.com/desperadomar/bluelatex/internal/wire"
)

const gatewayPort = 8081

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type gateway struct {
	registry *diffsync.PaperRegistry
	presence *presence.Tracker
	peers    *discovery.Directory // nil when mDNS discovery is disabled
	log      *slog.Logger
}

// handlePeers reports the sibling gateway instances discovered on the LAN.
// It always serves valid JSON, an empty array when discovery is disabled.
func (g *gateway) handlePeers(w http.ResponseWriter, r *http.Request) {
	peers := []discovery.Peer{}
	if g.peers != nil {
		peers = g.peers.Peers()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(peers)
}

func (g *gateway) handleConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paper := diffsync.PaperID(r.URL.Query().Get("paper"))
	if paper == "" {
		http.Error(w, "missing paper query parameter", http.StatusBadRequest)
		return
	}
	peer := diffsync.PeerID(uuid.NewString())

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	if err := g.registry.Join(ctx, paper, peer); err != nil {
		g.log.Warn("join failed", "paper", paper, "peer", peer, "error", err)
		return
	}
	g.presence.Join(ctx, paper, peer)
	defer func() {
		g.registry.Part(context.Background(), paper, peer)
		g.presence.Part(context.Background(), paper, peer)
	}()

	g.log.Info("peer connected", "paper", paper, "peer", peer)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			g.log.Info("peer disconnected", "paper", paper, "peer", peer, "error", err)
			return
		}

		var envelope wire.SyncSession
		if err := json.Unmarshal(raw, &envelope); err != nil {
			g.log.Warn("malformed envelope", "peer", peer, "error", err)
			continue
		}
		req, err := wire.DecodeRequest(peer, &envelope)
		if err != nil {
			g.log.Warn("malformed sync session", "peer", peer, "error", err)
			continue
		}
		req.Paper = paper

		resp, err := g.registry.Dispatch(ctx, req)
		if err != nil {
			g.log.Warn("sync session failed", "paper", paper, "peer", peer, "error", err)
			continue
		}

		out, err := json.Marshal(wire.EncodeResponse(resp))
		if err != nil {
			g.log.Error("failed to marshal response", "error", err)
			continue
		}
		if err := ws.WriteMessage(websocket.TextMessage, out); err != nil {
			g.log.Warn("write failed", "peer", peer, "error", err)
			return
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Environment: cfg.Server.Env})
	if err != nil {
		slog.Error("logging init failed", "error", err)
		os.Exit(1)
	}

	st, closeStore, err := storeinit.Open(cfg.Store)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	tracker := presence.NewTracker(cfg.Presence.RedisAddr, cfg.Presence.Channel, log)
	defer tracker.Close()

	g := &gateway{
		registry: diffsync.NewPaperRegistry(st),
		presence: tracker,
		log:      log,
	}

	discoveryCtx, stopDiscovery := context.WithCancel(context.Background())
	defer stopDiscovery()
	if cfg.Discovery.Enabled {
		shutdownMDNS, err := discovery.Register(cfg.Discovery.ServiceName, gatewayPort, log)
		if err != nil {
			log.Warn("mDNS registration failed, continuing without LAN discovery", "error", err)
		} else {
			defer shutdownMDNS()
			g.peers = discovery.NewDirectory(5 * time.Minute)
			go func() {
				if err := discovery.Browse(discoveryCtx, cfg.Discovery.ServiceName, g.peers, log); err != nil {
					log.Warn("mDNS browse stopped", "error", err)
				}
			}()
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleConnection)
	mux.HandleFunc("/peers", g.handlePeers)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", gatewayPort), Handler: mux}

	go func() {
		log.Info("gateway listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("gateway server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	g.registry.Shutdown(shutdownCtx)
}
