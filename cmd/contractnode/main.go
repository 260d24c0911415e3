// Command contractnode bootstraps a single protocol-core node: it opens
// (or creates) an on-disk identity, wires the storage manager, data
// channel transport, tunnel broker, and protocol handlers together, and
// serves the ambient status API. The DHT overlay and RPC transport that
// drive the protocol handlers (spec §1 Non-goals) are not implemented
// here; they must be supplied by an embedding caller through Config.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/persist"
	"github.com/spf13/cobra"
	"gitlab.com/NebulousLabs/errors"
)

var (
	dataDir    string
	apiAddr    string
	listenAddr string
	capacity   uint64
	runFarmer  bool
)

var identityMeta = persist.Metadata{Header: "Contractnode Identity", Version: "1.0"}

type identityFile struct {
	Seed [keys.SeedSize]byte
}

// loadOrCreateIdentity reads dataDir/identity.json, generating and
// persisting a fresh KeyPair the first time a node starts there.
func loadOrCreateIdentity(dataDir string) (keys.KeyPair, error) {
	path := filepath.Join(dataDir, "identity.json")
	var f identityFile
	err := persist.LoadJSON(identityMeta, &f, path)
	if err == nil {
		return keys.FromSeed(f.Seed)
	}
	if !errors.IsOSNotExist(err) {
		return keys.KeyPair{}, err
	}
	kp, err := keys.Generate()
	if err != nil {
		return keys.KeyPair{}, err
	}
	f.Seed = kp.Seed()
	if err := persist.SaveJSON(identityMeta, f, path); err != nil {
		return keys.KeyPair{}, err
	}
	return kp, nil
}

func startCmd(cmd *cobra.Command, args []string) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		die(err)
	}
	identity, err := loadOrCreateIdentity(dataDir)
	if err != nil {
		die(err)
	}
	fmt.Println("node id:", identity.NodeID().String())

	cfg := Config{
		DataDir:       dataDir,
		APIAddr:       apiAddr,
		ListenAddr:    listenAddr,
		Capacity:      capacity,
		LockThreshold: capacity / 10,
		DownloadBPS:   0,
		UploadBPS:     0,
		TunnelPort:    9982,
		RequiresNAT:   false,
		TunnelBreadth: 3,
		RunFarmer:     runFarmer,
	}

	srv, err := NewServer(cfg, identity)
	if err != nil {
		die(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nCaught stop signal, shutting down...")
		srv.Close()
	}()

	fmt.Println("Listening on", apiAddr)
	if err := srv.Serve(); err != nil {
		die(err)
	}
}

func die(err error) {
	fmt.Fprintln(os.Stderr, "contractnode:", err)
	os.Exit(exitCodeGeneral)
}

const exitCodeGeneral = 1

func main() {
	root := &cobra.Command{
		Use:   os.Args[0],
		Short: "contractnode - a storage contract protocol core node",
		Long:  "contractnode is a node in the storage contract protocol network: it negotiates contracts, serves shard data, and answers audit challenges.",
		Run:   startCmd,
	}
	root.Flags().StringVar(&dataDir, "data-dir", "contractnode-data", "directory to store node state in")
	root.Flags().StringVar(&apiAddr, "api-addr", "localhost:9980", "address to serve the status API on")
	root.Flags().StringVar(&listenAddr, "listen-addr", ":9981", "address to listen for data channel connections on")
	root.Flags().Uint64Var(&capacity, "capacity", 1<<40, "storage capacity in bytes before the node stops accepting offers")
	root.Flags().BoolVar(&runFarmer, "farmer", false, "run the farmer negotiator to accept published contracts")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("contractnode v0.1.0")
		},
	})

	if err := root.Execute(); err != nil {
		die(err)
	}
}
