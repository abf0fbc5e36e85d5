package bootstrap

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"WCKV/internal/application/service"
	"WCKV/internal/domain"
	"WCKV/internal/platform/api/zmq"
	"WCKV/internal/platform/config"
	"WCKV/internal/platform/messaging/zeromq/listener"
	"WCKV/internal/platform/messaging/zeromq/publisher"
	"WCKV/internal/platform/repository"
	"WCKV/internal/platform/repository/logfile"
	"WCKV/internal/platform/repository/lsm_tree"
	"WCKV/internal/platform/server"
	"WCKV/internal/platform/server/handler/dbentry"
	"github.com/cockroachdb/errors"
	"github.com/thejerf/suture/v4"
	"go.uber.org/dig"
)

func Run() error {
	container, err := BuildContainer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return container.Invoke(func(conf config.Config,
		repo *repository.LSMTreeRepository,
		cache *service.FindCache,
		invalidations domain.InvalidationPublisher,
		httpServer *server.Server,
		zmqApi *zmq.ZmqApi) error {
		defer closeAll(repo, invalidations)

		supervisor := suture.NewSimple("wckv")
		supervisor.Add(httpServer)
		supervisor.Add(zmqApi)
		if conf.SequencerSubscribeUrl != "" {
			supervisor.Add(listener.NewZeromqInvalidationListener(conf.SequencerSubscribeUrl, conf.InstanceId, cache))
		}

		log.Printf("Instance %s serving data directory %s", conf.InstanceId, conf.DataDirectory)
		err := supervisor.Serve(ctx)
		if errors.Is(err, context.Canceled) {
			log.Println("Shutting down")
			return nil
		}
		return err
	})
}

// BuildContainer wires every component. Nothing is opened until a consumer is invoked.
func BuildContainer() (*dig.Container, error) {
	container := dig.New()
	constructors := []interface{}{
		config.LoadConfig,
		engineOptions,
		openLsmTree,
		repository.NewLSMTreeRepository,
		storageEngine,
		findCache,
		publisher.NewInvalidationPublisher,
		service.NewFindEntryService,
		service.NewFindColumnsService,
		service.NewInsertEntryService,
		service.NewDeleteEntryService,
		dbentry.NewDbEntryHandler,
		httpServer,
		zmq.NewZmqApi,
	}
	for _, constructor := range constructors {
		if err := container.Provide(constructor); err != nil {
			return nil, err
		}
	}
	return container, nil
}

func engineOptions(conf config.Config) lsm_tree.Options {
	logOptions := logfile.Options{
		RegionCapacity:       conf.LogRegionCapacity,
		RegionThreshold:      conf.LogRegionThreshold,
		ForceAfterRegionFull: conf.ForceAfterRegionFull,
	}
	return lsm_tree.Options{
		MemTable: lsm_tree.MemTableOptions{
			MaxEntries: conf.MemTableMaxEntries,
			MaxBytes:   conf.MemTableMaxBytes,
		},
		ValueLog: logOptions,
		Wal:      logOptions,
	}
}

func openLsmTree(conf config.Config, options lsm_tree.Options) (*lsm_tree.LsmTree, error) {
	dir, err := filepath.Abs(conf.DataDirectory)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve data directory %s", conf.DataDirectory)
	}
	return lsm_tree.Open(dir, options)
}

func storageEngine(repo *repository.LSMTreeRepository) domain.StorageEngine {
	return repo
}

func findCache(conf config.Config) *service.FindCache {
	return service.NewFindCache(conf.FindCacheSize)
}

func httpServer(conf config.Config, handler *dbentry.DbEntryHandler) *server.Server {
	return server.NewServer("", conf.ServerPort, handler)
}

func closeAll(closers ...interface{}) {
	for _, c := range closers {
		closer, ok := c.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			log.Printf("Error closing %T: %v", c, err)
		}
	}
}
