package zmq

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"

	"WCKV/internal/application/service"
	"WCKV/internal/domain"
	"WCKV/internal/platform/config"
	"github.com/cockroachdb/errors"
	"github.com/go-zeromq/zmq4"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	FIND           = "FIND"
	FIND_COLUMNS   = "FIND_COLUMNS"
	INSERT         = "INSERT"
	INSERT_COLUMNS = "INSERT_COLUMNS"
	DELETE         = "DELETE"
	DELETE_COLUMNS = "DELETE_COLUMNS"

	workerPoolSize = 50000
)

// ZmqApi answers REQ clients through a ROUTER socket. Requests are handed to a worker
// pool and each reply is routed back by the identity frame of its request.
type ZmqApi struct {
	port       int
	services   *Services
	workers    int
	workerPool chan Job
	sendMu     sync.Mutex
}

type Job struct {
	Identity []byte
	Request  *ApiRequest
}

type Services struct {
	find        *service.FindEntryService
	findColumns *service.FindColumnsService
	insert      *service.InsertEntryService
	delete      *service.DeleteEntryService
}

func NewZmqApi(find *service.FindEntryService, findColumns *service.FindColumnsService,
	insert *service.InsertEntryService, delete *service.DeleteEntryService, conf config.Config) *ZmqApi {
	return &ZmqApi{
		port: conf.ZmqApiPort,
		services: &Services{
			find:        find,
			findColumns: findColumns,
			insert:      insert,
			delete:      delete,
		},
		workers:    runtime.NumCPU() * 4,
		workerPool: make(chan Job, workerPoolSize),
	}
}

func (z *ZmqApi) String() string {
	return fmt.Sprintf("zmq-api(%d)", z.port)
}

// Serve listens until ctx is cancelled.
func (z *ZmqApi) Serve(ctx context.Context) error {
	address := fmt.Sprintf("tcp://*:%d", z.port)
	socket := zmq4.NewRouter(ctx)
	defer socket.Close()
	if err := socket.Listen(address); err != nil {
		return errors.Wrapf(err, "listen on %s", address)
	}

	var wg sync.WaitGroup
	for i := 0; i < z.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			z.workerRoutine(ctx, socket)
		}()
	}
	log.Printf("ZMQ API listening on %s with %d workers", address, z.workers)

	err := z.socketListener(ctx, socket)
	wg.Wait()
	log.Println("ZMQ API shut down")
	return err
}

func (z *ZmqApi) socketListener(ctx context.Context, socket zmq4.Socket) error {
	for {
		msg, err := socket.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, zmq4.ErrClosedConn) {
				return err
			}
			log.Printf("ZMQ API recv error: %v", err)
			continue
		}
		if len(msg.Frames) < 2 {
			log.Printf("ZMQ API: dropping message with %d frames", len(msg.Frames))
			continue
		}
		identity := msg.Frames[0]

		var req ApiRequest
		if err := json.Unmarshal(msg.Frames[len(msg.Frames)-1], &req); err != nil {
			log.Printf("ZMQ API unmarshal error: %v", err)
			z.reply(socket, identity, ApiResponse{Error: err.Error()})
			continue
		}

		select {
		case z.workerPool <- Job{Identity: identity, Request: &req}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (z *ZmqApi) workerRoutine(ctx context.Context, socket zmq4.Socket) {
	for {
		select {
		case job := <-z.workerPool:
			z.reply(socket, job.Identity, z.processRequest(job.Request))
		case <-ctx.Done():
			return
		}
	}
}

func (z *ZmqApi) reply(socket zmq4.Socket, identity []byte, response ApiResponse) {
	payload, err := json.Marshal(response)
	if err != nil {
		log.Printf("Error marshalling response: %v", err)
		payload = []byte(`{"success":false}`)
	}
	z.sendMu.Lock()
	defer z.sendMu.Unlock()
	if err := socket.Send(zmq4.NewMsgFrom(identity, nil, payload)); err != nil {
		log.Printf("ZMQ API send error: %v", err)
	}
}

func mutationResponse(messageKey domain.MessageKey, err error) ApiResponse {
	response := ApiResponse{
		Success: err == nil,
		MessageKey: &MessageKeyResponse{
			Key:          string(messageKey.Key),
			ColumnFamily: messageKey.ColumnFamily,
		},
	}
	if err != nil {
		response.Error = err.Error()
	}
	return response
}

func errorResponse(err error) ApiResponse {
	return ApiResponse{Error: err.Error()}
}

func (z *ZmqApi) processRequest(req *ApiRequest) ApiResponse {
	key := []byte(req.Key)
	switch req.Action {
	case FIND:
		result := z.services.find.Execute(service.FindEntryQuery{
			Key:          key,
			ColumnFamily: req.ColumnFamily,
			Column:       req.Column,
		})
		if result.Err != nil {
			return errorResponse(result.Err)
		}
		return ApiResponse{
			Success: true,
			Found:   result.Found,
			Value:   string(result.Value),
		}

	case FIND_COLUMNS:
		result := z.services.findColumns.Execute(service.FindColumnsQuery{
			Key:          key,
			ColumnFamily: req.ColumnFamily,
		})
		if result.Err != nil {
			return errorResponse(result.Err)
		}
		columns := make(map[string]string, len(result.Columns))
		for column, value := range result.Columns {
			columns[column] = string(value)
		}
		return ApiResponse{
			Success: true,
			Found:   len(columns) > 0,
			Columns: columns,
		}

	case INSERT:
		result := z.services.insert.Execute(service.InsertEntryCommand{
			Key:          key,
			ColumnFamily: req.ColumnFamily,
			Columns:      map[string][]byte{req.Column: []byte(req.Value)},
		})
		return mutationResponse(result.MessageKey, result.Err)

	case INSERT_COLUMNS:
		columns := make(map[string][]byte, len(req.Columns))
		for column, value := range req.Columns {
			columns[column] = []byte(value)
		}
		result := z.services.insert.Execute(service.InsertEntryCommand{
			Key:          key,
			ColumnFamily: req.ColumnFamily,
			Columns:      columns,
		})
		return mutationResponse(result.MessageKey, result.Err)

	case DELETE:
		if req.Column == "" {
			return errorResponse(errors.New("DELETE requires a column, use DELETE_COLUMNS for the whole row"))
		}
		result := z.services.delete.Execute(service.DeleteEntryCommand{
			Key:          key,
			ColumnFamily: req.ColumnFamily,
			Column:       req.Column,
		})
		return mutationResponse(result.MessageKey, result.Err)

	case DELETE_COLUMNS:
		result := z.services.delete.Execute(service.DeleteEntryCommand{
			Key:          key,
			ColumnFamily: req.ColumnFamily,
		})
		return mutationResponse(result.MessageKey, result.Err)

	default:
		log.Printf("Unknown action: %s", req.Action)
		return errorResponse(errors.Newf("unknown action %q", req.Action))
	}
}
