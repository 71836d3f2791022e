package cli

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/database"
	"github.com/covenant-lang/covenant/internal/node"
	"github.com/covenant-lang/covenant/internal/vm"
)

// cmdNode serves the devnet gRPC API until interrupted.
func cmdNode(args []string, stderr io.Writer) int {
	listen := config.DefaultListenAddr
	var store string
	var budget uint64
	memory := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--listen":
			var err error
			listen, i, err = takeStringFlag(args, i)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 2
			}
		case "--store":
			var err error
			store, i, err = takeStringFlag(args, i)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 2
			}
		case "--budget":
			var err error
			budget, i, err = takeUintFlag(args, i)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 2
			}
		case "--memory":
			memory = true
		default:
			fmt.Fprintf(stderr, "unexpected argument %q\n", args[i])
			return 2
		}
	}

	log := newLogger()

	var backend database.Backend
	if memory {
		backend = database.NewMemoryBackend()
	} else {
		var err error
		backend, err = openStore(store)
		if err != nil {
			log.WithError(err).Error("opening datastore")
			return 1
		}
	}
	defer backend.Close()

	session := vm.NewSession(backend, vm.WithBudget(budget))
	server, err := node.New(session, log)
	if err != nil {
		log.WithError(err).Error("starting node")
		return 1
	}

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		log.WithError(err).Error("listening")
		return 1
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info("shutting down")
		server.Stop()
	}()

	if err := server.Serve(lis); err != nil {
		log.WithError(err).Error("serving")
		return 1
	}
	return 0
}
