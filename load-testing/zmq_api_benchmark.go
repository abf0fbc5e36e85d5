package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"WCKV/internal/platform/api/zmq"
	"github.com/cockroachdb/errors"
	"github.com/go-zeromq/zmq4"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errTimeout = errors.New("request timeout")

var actions = []string{zmq.INSERT, zmq.INSERT_COLUMNS, zmq.FIND, zmq.FIND_COLUMNS, zmq.DELETE, zmq.DELETE_COLUMNS}

// actionStats collects the latencies of one action.
type actionStats struct {
	mu        sync.Mutex
	latencies []time.Duration
	ok        int64
	failed    int64
	timedOut  int64
}

func (s *actionStats) record(latency time.Duration, resp zmq.ApiResponse, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, latency)
	switch {
	case errors.Is(err, errTimeout):
		s.timedOut++
	case err != nil || !resp.Success:
		s.failed++
	default:
		s.ok++
	}
}

func (s *actionStats) total() int64 {
	return s.ok + s.failed + s.timedOut
}

func (s *actionStats) sortLatencies() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.Slice(s.latencies, func(i, j int) bool {
		return s.latencies[i] < s.latencies[j]
	})
}

// percentile expects sorted latencies.
func (s *actionStats) percentile(p float64) time.Duration {
	if len(s.latencies) == 0 {
		return 0
	}
	return s.latencies[min(int(float64(len(s.latencies))*p), len(s.latencies)-1)]
}

type Benchmark struct {
	address  string
	workers  int
	keySpace int
	timeout  time.Duration
	requests atomic.Int64
	stats    map[string]*actionStats
}

func NewBenchmark(address string, workers, keySpace int, timeout time.Duration) *Benchmark {
	stats := make(map[string]*actionStats, len(actions))
	for _, action := range actions {
		stats[action] = &actionStats{}
	}
	return &Benchmark{
		address:  address,
		workers:  workers,
		keySpace: keySpace,
		timeout:  timeout,
		stats:    stats,
	}
}

// ZmqClient sends one request at a time over a REQ socket.
type ZmqClient struct {
	socket  zmq4.Socket
	timeout time.Duration
}

func NewZmqClient(ctx context.Context, address string, timeout time.Duration) (*ZmqClient, error) {
	socket := zmq4.NewReq(ctx)
	if err := socket.Dial(address); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", address)
	}
	return &ZmqClient{socket: socket, timeout: timeout}, nil
}

func (c *ZmqClient) Do(req zmq.ApiRequest) (zmq.ApiResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return zmq.ApiResponse{}, err
	}
	if err := c.socket.Send(zmq4.NewMsg(payload)); err != nil {
		return zmq.ApiResponse{}, errors.Wrap(err, "send request")
	}

	type reply struct {
		msg zmq4.Msg
		err error
	}
	replies := make(chan reply, 1)
	go func() {
		msg, err := c.socket.Recv()
		replies <- reply{msg, err}
	}()

	select {
	case r := <-replies:
		if r.err != nil {
			return zmq.ApiResponse{}, r.err
		}
		var resp zmq.ApiResponse
		if err := json.Unmarshal(r.msg.Bytes(), &resp); err != nil {
			return zmq.ApiResponse{}, errors.Wrap(err, "unmarshal response")
		}
		return resp, nil
	case <-time.After(c.timeout):
		// a REQ socket cannot send again before a reply, the worker must reconnect
		return zmq.ApiResponse{}, errTimeout
	}
}

func (c *ZmqClient) Close() error {
	return c.socket.Close()
}

func (b *Benchmark) request(r *rand.Rand, action string) zmq.ApiRequest {
	req := zmq.ApiRequest{
		Action:       action,
		Key:          fmt.Sprintf("key_%d", r.Intn(b.keySpace)),
		ColumnFamily: "bench",
	}
	switch action {
	case zmq.INSERT:
		req.Column = fmt.Sprintf("c%d", r.Intn(4))
		req.Value = fmt.Sprintf("value_%d", r.Int63())
	case zmq.INSERT_COLUMNS:
		req.Columns = make(map[string]string, 4)
		for i := 0; i < 4; i++ {
			req.Columns[fmt.Sprintf("c%d", i)] = fmt.Sprintf("value_%d", r.Int63())
		}
	case zmq.FIND, zmq.DELETE:
		req.Column = fmt.Sprintf("c%d", r.Intn(4))
	}
	return req
}

func (b *Benchmark) worker(ctx context.Context, id int) {
	r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	var client *ZmqClient
	defer func() {
		if client != nil {
			client.Close()
		}
	}()

	for ctx.Err() == nil {
		if client == nil {
			var err error
			if client, err = NewZmqClient(ctx, b.address, b.timeout); err != nil {
				log.Printf("Worker %d: %v", id, err)
				return
			}
		}

		action := actions[r.Intn(len(actions))]
		start := time.Now()
		resp, err := client.Do(b.request(r, action))
		b.stats[action].record(time.Since(start), resp, err)
		b.requests.Add(1)

		if errors.Is(err, errTimeout) {
			client.Close()
			client = nil
		}
	}
}

func (b *Benchmark) Run(ctx context.Context, duration, reportInterval time.Duration) time.Duration {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			b.worker(ctx, id)
		}(i)
	}

	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-ticker.C:
			elapsed := time.Since(start).Seconds()
			n := b.requests.Load()
			log.Printf("[%.0fs] requests: %d, rps: %.2f", elapsed, n, float64(n)/elapsed)
		case <-done:
			return time.Since(start)
		}
	}
}

func (b *Benchmark) Report(elapsed time.Duration) {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("%d workers, %v, %d requests, %.2f rps\n",
		b.workers, elapsed.Round(time.Millisecond), b.requests.Load(), float64(b.requests.Load())/elapsed.Seconds())
	fmt.Println(strings.Repeat("=", 72))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "action\ttotal\tok\tfailed\ttimeout\tp50\tp90\tp99\tmax\t")
	for _, action := range actions {
		s := b.stats[action]
		s.sortLatencies()
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%v\t%v\t%v\t%v\t\n",
			action, s.total(), s.ok, s.failed, s.timedOut,
			s.percentile(0.50), s.percentile(0.90), s.percentile(0.99), s.percentile(1))
	}
	w.Flush()
}

func main() {
	address := flag.String("address", "tcp://localhost:5555", "ZMQ API address")
	workers := flag.Int("workers", 10, "Number of concurrent clients")
	keySpace := flag.Int("keys", 1000, "Number of distinct row keys")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	timeout := flag.Duration("timeout", 5*time.Second, "Request timeout")
	reportInterval := flag.Duration("report", 5*time.Second, "Progress report interval")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Printf("Benchmarking %s with %d workers for %v", *address, *workers, *duration)
	b := NewBenchmark(*address, *workers, *keySpace, *timeout)
	b.Report(b.Run(ctx, *duration, *reportInterval))
}
