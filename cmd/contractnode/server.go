package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/NebulousLabs/contractcore/api"
	"github.com/NebulousLabs/contractcore/channel"
	"github.com/NebulousLabs/contractcore/farmer"
	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/negotiation"
	"github.com/NebulousLabs/contractcore/persist"
	"github.com/NebulousLabs/contractcore/protocol"
	"github.com/NebulousLabs/contractcore/storage"
	"github.com/NebulousLabs/contractcore/tunnel"
	"github.com/NebulousLabs/contractcore/wire"
	"gitlab.com/NebulousLabs/errors"
)

// Config configures a Server. Transport and Router plug in the DHT overlay
// and RPC transport this core consumes but does not implement (spec §1,
// §6 wire_transport/routing_table) — the operator supplies a real overlay
// implementation; contractnode only wires the protocol core around it.
type Config struct {
	DataDir    string
	APIAddr    string
	ListenAddr string

	Capacity      uint64
	LockThreshold uint64
	DownloadBPS   int64
	UploadBPS     int64

	TunnelPort    uint16
	RequiresNAT   bool
	TunnelBreadth int

	FarmerSettings   farmer.Settings
	FarmerPredicate  farmer.Predicate
	RunFarmer        bool

	Transport wire.Transport
	Router    wire.RoutingTable
	Resolver  keys.PublicKeyResolver
	Gateway   tunnel.Gateway
	CallFind  tunnel.FindTunnelCaller
	Triggers  protocol.TriggerRegistry
	Events    protocol.EventSink
}

// moduleCloser pairs a name with the module it shuts down, so Close can
// report which module it is stopping and unwind in reverse order.
type moduleCloser struct {
	name string
	io.Closer
}

// Server bundles a running contractnode: the HTTP status API plus every
// protocol collaborator loadModules wired up.
type Server struct {
	httpServer    *http.Server
	listener      net.Listener
	config        Config
	moduleClosers []moduleCloser
	identity      keys.KeyPair
	log           *persist.Logger
	mu            sync.Mutex
}

// NewServer opens identity, the data directory's persistence layer, and
// every configured module, then binds the status API to config.APIAddr.
func NewServer(config Config, identity keys.KeyPair) (*Server, error) {
	l, err := net.Listen("tcp", config.APIAddr)
	if err != nil {
		return nil, errors.Extend(err, errors.New("contractnode: failed to bind api address"))
	}

	log, err := persist.NewLogger(filepath.Join(config.DataDir, "contractnode.log"))
	if err != nil {
		l.Close()
		return nil, errors.Extend(err, errors.New("contractnode: failed to open logger"))
	}

	srv := &Server{
		listener: l,
		config:   config,
		identity: identity,
		log:      log,
		httpServer: &http.Server{
			ReadTimeout:       time.Minute * 5,
			ReadHeaderTimeout: time.Minute * 2,
			IdleTimeout:       time.Minute * 5,
		},
	}

	if err := srv.loadModules(); err != nil {
		l.Close()
		log.Close()
		return nil, err
	}
	return srv, nil
}

// loadModules constructs the storage manager, data channel transport,
// tunnel broker, protocol handlers, optional farmer negotiator, and status
// API, tracking each for reverse-order Close the way cmd/siad's
// loadModules tracks moduleClosers.
func (srv *Server) loadModules() error {
	cfg := srv.config

	fmt.Println("(1/5) Opening storage manager...")
	adapter, err := storage.OpenBoltAdapter(filepath.Join(cfg.DataDir, "items.db"))
	if err != nil {
		return err
	}
	srv.moduleClosers = append(srv.moduleClosers, moduleCloser{"storage adapter", adapter})

	shards, err := storage.NewFSShardStore(filepath.Join(cfg.DataDir, "shards"))
	if err != nil {
		return err
	}

	manager, err := storage.NewManager(adapter, shards, filepath.Join(cfg.DataDir, "manager.wal"), cfg.Capacity, cfg.LockThreshold)
	if err != nil {
		return err
	}

	fmt.Println("(2/5) Opening data channel transport...")
	dataChannel, err := channel.NewMuxTransport(filepath.Join(cfg.DataDir, "siamux"), cfg.ListenAddr, cfg.DownloadBPS, cfg.UploadBPS)
	if err != nil {
		return err
	}
	srv.moduleClosers = append(srv.moduleClosers, moduleCloser{"data channel", dataChannel})

	fmt.Println("(3/5) Starting tunnel broker...")
	self := wire.Contact{NodeID: srv.identity.NodeID(), Address: cfg.ListenAddr, PublicKey: srv.identity.PublicKey()}
	broker := tunnel.NewBroker(self, cfg.Gateway, cfg.Router, cfg.CallFind, cfg.TunnelPort, cfg.RequiresNAT, cfg.TunnelBreadth)

	fmt.Println("(4/5) Wiring protocol handlers...")
	handlers := &protocol.Handlers{
		Identity:   srv.identity,
		Manager:    manager,
		Registry:   negotiation.NewRegistry(),
		Auth:       channel.NewAuthorization(),
		DataServer: dataChannel,
		DataClient: dataChannel,
		Broker:     broker,
		Mapper:     tunnel.DefaultPortMapper(),
		Resolver:   cfg.Resolver,
		Transport:  cfg.Transport,
		Triggers:   cfg.Triggers,
		Events:     cfg.Events,
		Log:        srv.log,
	}
	srv.moduleClosers = append(srv.moduleClosers, moduleCloser{"protocol handlers", handlers})

	var negotiator *farmer.Negotiator
	if cfg.RunFarmer {
		fmt.Println("(5/5) Starting farmer negotiator...")
		negotiator = farmer.New(srv.identity, manager, cfg.Router, cfg.Transport, cfg.FarmerSettings, cfg.FarmerPredicate, srv.log)
		manager.Subscribe(negotiator)
		srv.moduleClosers = append(srv.moduleClosers, moduleCloser{"farmer negotiator", negotiator})
	} else {
		fmt.Println("(5/5) Farmer negotiator disabled")
	}

	a := api.New(manager, negotiator)
	srv.httpServer.Handler = a.Handler
	return nil
}

// Serve blocks, handling status API requests until Close is called.
func (srv *Server) Serve() error {
	err := srv.httpServer.Serve(srv.listener)
	if err != nil && !strings.HasSuffix(err.Error(), "use of closed network connection") {
		return err
	}
	return nil
}

// Close shuts the listener and every module down in reverse load order.
func (srv *Server) Close() error {
	var errs []error
	if err := srv.listener.Close(); err != nil {
		errs = append(errs, err)
	}
	for i := len(srv.moduleClosers) - 1; i >= 0; i-- {
		m := srv.moduleClosers[i]
		fmt.Printf("Closing %v...\n", m.name)
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := srv.log.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	msg := make([]string, len(errs))
	for i, e := range errs {
		msg[i] = e.Error()
	}
	return errors.New(strings.Join(msg, "\n"))
}
