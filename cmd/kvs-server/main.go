// Command kvs-server runs the TCP front-end of the key-value store,
// backed by either the Bitcask engine (internal/engine) or the B-tree
// alternate (internal/btreeengine).
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"runtime"

	"k8s.io/klog/v2"

	"github.com/kvsdb/kvs/internal/async"
	"github.com/kvsdb/kvs/internal/btreeengine"
	"github.com/kvsdb/kvs/internal/engine"
	"github.com/kvsdb/kvs/internal/pool"
	"github.com/kvsdb/kvs/internal/server"
	"github.com/kvsdb/kvs/internal/startup"
)

// Version is the server's release identifier, reported by --version.
const Version = "0.5.0"

func main() {
	klog.InitFlags(nil)

	addr := flag.String("addr", "127.0.0.1:4000", "listen address")
	engineName := flag.String("engine", "kvs", "storage engine: kvs or sled")
	showVersion := flag.Bool("version", false, "print version and exit")
	workers := flag.Int("workers", runtime.NumCPU(), "worker pool size")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	if *engineName != "kvs" && *engineName != "sled" {
		klog.Exitf("kvs-server: unknown engine %q", *engineName)
	}

	workDir, err := os.Getwd()
	if err != nil {
		klog.Exitf("kvs-server: getwd: %v", err)
	}
	dataDir, err := startup.ResolveDataDir(workDir, *engineName)
	if err != nil {
		klog.Exitf("kvs-server: %v", err)
	}

	klog.Infof("kvs-server %s: engine=%s addr=%s dir=%s", Version, *engineName, *addr, dataDir)

	kv, err := openEngine(*engineName, dataDir, *workers)
	if err != nil {
		klog.Exitf("kvs-server: opening engine: %v", err)
	}
	defer kv.Close()

	p, err := pool.NewQueue(*workers)
	if err != nil {
		klog.Exitf("kvs-server: building pool: %v", err)
	}
	defer p.Shutdown()

	facade := async.NewFacade(kv, p)
	srv := server.New(facade)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		klog.Exitf("kvs-server: listen %s: %v", *addr, err)
	}
	klog.Infof("kvs-server: listening on %s", *addr)

	if err := srv.Serve(ln); err != nil {
		klog.Exitf("kvs-server: serve: %v", err)
	}
}

func openEngine(name, dataDir string, workers int) (engine.KV, error) {
	if name == "sled" {
		return btreeengine.Open(dataDir)
	}
	return engine.Open(dataDir, workers)
}
