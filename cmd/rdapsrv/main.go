// rdapsrv serves RDAP over HTTP from a data directory of JSON and
// template files, or answers bootstrap redirects computed from the IANA
// registries. Configuration comes from RDAP_SRV_* environment variables,
// optionally seeded from rdap.env in the configuration directory; flags
// override both.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/datum-labs/rdapkit/bootstrap"
	"github.com/datum-labs/rdapkit/internal/cfg"
	"github.com/datum-labs/rdapkit/rdap"
	"github.com/datum-labs/rdapkit/server"
	"github.com/datum-labs/rdapkit/store"
)

const refreshInterval = 60 * time.Second

func main() {
	var (
		flagListenAddr string
		flagListenPort int
		flagDataDir    string
		flagPrefix     string
		flagBootstrap  bool
	)

	root := &cobra.Command{
		Use:           "rdapsrv",
		Short:         "RDAP server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, err := cfg.ConfigDir()
			if err != nil {
				configDir = ""
			}
			conf, err := cfg.LoadServer(configDir)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen-addr") {
				conf.ListenAddr = flagListenAddr
			}
			if cmd.Flags().Changed("listen-port") {
				conf.ListenPort = flagListenPort
			}
			if cmd.Flags().Changed("data-dir") {
				conf.DataDir = flagDataDir
			}
			if cmd.Flags().Changed("bootstrap") {
				conf.Bootstrap = flagBootstrap
			}
			return run(conf, configDir, flagPrefix)
		},
	}

	root.Flags().StringVar(&flagListenAddr, "listen-addr", "127.0.0.1", "address to bind")
	root.Flags().IntVar(&flagListenPort, "listen-port", 3000, "port to bind")
	root.Flags().StringVar(&flagDataDir, "data-dir", "", "data directory with RDAP JSON and template files")
	root.Flags().StringVar(&flagPrefix, "prefix", server.DefaultPrefix, "path prefix for the RDAP routes")
	root.Flags().BoolVar(&flagBootstrap, "bootstrap", false, "serve redirects from the IANA bootstrap registries")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rdapsrv:", err)
		os.Exit(1)
	}
}

func run(conf *cfg.Server, configDir, prefix string) error {
	log := cfg.Logger(conf.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := server.Options{
		Prefix:                 prefix,
		JSContact:              rdap.ParseJSContactMode(conf.JSContactConversion),
		DomainSearchByName:     conf.DomainSearchByName,
		NameserverSearchByName: conf.NameserverSearchByName,
		NameserverSearchByIP:   conf.NameserverSearchByIP,
		Log:                    log,
	}

	var handler http.Handler
	if conf.Bootstrap {
		cacheDir, err := cfg.CacheDir()
		if err != nil {
			return err
		}
		boot := bootstrap.NewStore(
			bootstrap.WithCacheDir(cacheDir),
			bootstrap.WithConfigDir(configDir),
			bootstrap.WithLogger(log),
		)
		// registries must be warm before the first request
		if err := boot.Refresh(ctx); err != nil {
			return fmt.Errorf("initial bootstrap registry fetch: %w", err)
		}
		go boot.RunRefresher(ctx, refreshInterval)
		if conf.UpdateOnBootstrap {
			log.Info("redirects are computed from the live registries; update-on-bootstrap is implied")
		}
		handler = server.NewBootstrap(boot, opts).Router()
	} else {
		dataDir := conf.DataDir
		if dataDir == "" && configDir != "" {
			dataDir = filepath.Join(configDir, "data")
		}
		if dataDir == "" {
			return errors.New("no data directory; set RDAP_SRV_DATA_DIR or --data-dir")
		}
		st := store.New(dataDir, store.WithLogger(log))
		if err := st.Load(); err != nil {
			return err
		}
		go func() {
			if err := st.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("data directory watcher stopped")
			}
		}()
		handler = server.New(st, opts).Router()
	}

	addr := net.JoinHostPort(conf.ListenAddr, strconv.Itoa(conf.ListenPort))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
