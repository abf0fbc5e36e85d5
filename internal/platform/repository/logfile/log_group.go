package logfile

import (
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"WCKV/internal/domain"
	"WCKV/internal/platform/metrics"
	"github.com/cockroachdb/errors"
)

// LogGroup owns an ordered run of regions that together tile [begin, MaxGlobalIndex()].
// Appends are serialized; readers work from a copy-on-write snapshot of the region
// list, so a rotation never disturbs a read in flight.
type LogGroup struct {
	mu      sync.Mutex
	dir     string
	options Options
	regions atomic.Pointer[[]*LogRegion]
}

func Open(dir string, options Options) (*LogGroup, error) {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return nil, domain.CorruptStorage("%s is not a directory", dir)
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, domain.StorageIo(err, "create log group %s", dir)
		}
	case err != nil:
		return nil, domain.StorageIo(err, "stat log group %s", dir)
	}

	g := &LogGroup{
		dir:     dir,
		options: options.withDefaults(),
	}

	ids, err := regionIds(dir)
	if err != nil {
		return nil, err
	}

	var regions []*LogRegion
	if len(ids) == 0 {
		region, err := createRegion(dir, beginRegionId, beginGlobalIndex)
		if err != nil {
			return nil, err
		}
		regions = append(regions, region)
	} else {
		for _, id := range ids {
			region, err := openRegion(dir, id)
			if err != nil {
				closeAll(regions)
				return nil, err
			}
			if n := len(regions); n > 0 && regions[n-1].GlobalIndexEnd()+1 != region.GlobalIndexBegin() {
				closeAll(append(regions, region))
				return nil, domain.CorruptStorage("log group %s: region %d begins at %d, expected %d",
					dir, id, region.GlobalIndexBegin(), regions[n-1].GlobalIndexEnd()+1)
			}
			regions = append(regions, region)
		}
		log.Printf("Opened log group %s: regions %d..%d, max global index %d",
			dir, ids[0], ids[len(ids)-1], regions[len(regions)-1].GlobalIndexEnd())
	}

	g.regions.Store(&regions)
	return g, nil
}

// regionIds returns the sorted region ids found in dir. The ids must be consecutive.
func regionIds(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.StorageIo(err, "list log group %s", dir)
	}
	var ids []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, LogSuffix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, LogSuffix))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[0]+i {
			return nil, domain.CorruptStorage("log group %s: region %d not found", dir, ids[0]+i)
		}
	}
	return ids, nil
}

func closeAll(regions []*LogRegion) {
	for _, region := range regions {
		region.Close()
	}
}

func (g *LogGroup) snapshot() []*LogRegion {
	return *g.regions.Load()
}

func (g *LogGroup) lastRegion() *LogRegion {
	regions := g.snapshot()
	return regions[len(regions)-1]
}

// Append stores one record and returns the global index assigned to it.
func (g *LogGroup) Append(extraData, payload []byte) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	index, err := g.append(extraData, payload)
	metrics.LogAppendsTotal.WithLabelValues(metrics.Result(err)).Inc()
	return index, err
}

func (g *LogGroup) append(extraData, payload []byte) (int64, error) {
	region := g.lastRegion()

	if !region.accepts(int64(len(extraData)+len(payload)), g.options) {
		if g.options.ForceAfterRegionFull {
			if err := region.Force(); err != nil {
				return 0, err
			}
		}
		next, err := g.createNextRegion(region)
		if err != nil {
			return 0, err
		}
		region = next
	}

	return region.append(extraData, payload)
}

func (g *LogGroup) createNextRegion(last *LogRegion) (*LogRegion, error) {
	region, err := createRegion(g.dir, last.Id()+1, last.GlobalIndexEnd()+1)
	if err != nil {
		return nil, err
	}

	current := g.snapshot()
	next := make([]*LogRegion, len(current), len(current)+1)
	copy(next, current)
	next = append(next, region)
	g.regions.Store(&next)

	metrics.LogRegionRotationsTotal.Inc()
	log.Printf("Log group %s: sealed region %d at index %d, rolled to region %d",
		g.dir, last.Id(), last.GlobalIndexEnd(), region.Id())
	return region, nil
}

// Find returns the entry at globalIndex; an index outside [begin, MaxGlobalIndex()] is absent.
func (g *LogGroup) Find(globalIndex int64) (LogEntry, bool, error) {
	regions := g.snapshot()
	i := sort.Search(len(regions), func(i int) bool {
		return regions[i].GlobalIndexEnd() >= globalIndex
	})
	if i == len(regions) {
		return LogEntry{}, false, nil
	}
	return regions[i].ReadEntry(globalIndex)
}

// Range returns the entries in [beginIndex, endIndex], in increasing index order.
func (g *LogGroup) Range(beginIndex, endIndex int64) ([]LogEntry, error) {
	var entries []LogEntry

	for _, region := range g.snapshot() {
		info := region.Info()
		if beginIndex > info.End {
			continue
		}
		if endIndex < info.Begin {
			break
		}

		begin := max(info.Begin, beginIndex)
		end := min(info.End, endIndex)
		for globalIndex := begin; globalIndex <= end; globalIndex++ {
			entry, found, err := region.ReadEntry(globalIndex)
			if err != nil {
				return nil, err
			}
			if found {
				entries = append(entries, entry)
			}
		}
	}
	return entries, nil
}

// ForEach visits every entry in index order until fn returns an error.
func (g *LogGroup) ForEach(fn func(entry LogEntry) error) error {
	for _, region := range g.snapshot() {
		info := region.Info()
		for globalIndex := info.Begin; globalIndex <= info.End; globalIndex++ {
			entry, found, err := region.ReadEntry(globalIndex)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *LogGroup) MaxGlobalIndex() int64 {
	return g.lastRegion().GlobalIndexEnd()
}

func (g *LogGroup) MinGlobalIndex() int64 {
	return g.snapshot()[0].GlobalIndexBegin()
}

func (g *LogGroup) Regions() []RegionInfo {
	regions := g.snapshot()
	infos := make([]RegionInfo, 0, len(regions))
	for _, region := range regions {
		infos = append(infos, region.Info())
	}
	return infos
}

func (g *LogGroup) Dir() string {
	return g.dir
}

// Sync forces the region currently taking appends.
func (g *LogGroup) Sync() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRegion().Force()
}

func (g *LogGroup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var errs error
	for _, region := range g.snapshot() {
		errs = errors.CombineErrors(errs, region.Close())
	}
	return errs
}

// Delete closes the group and removes its directory. Only valid once nothing else
// holds on to the group.
func (g *LogGroup) Delete() error {
	if err := g.Close(); err != nil {
		return domain.StorageIo(err, "close log group %s", g.dir)
	}
	if err := os.RemoveAll(g.dir); err != nil {
		return domain.StorageIo(err, "delete log group %s", g.dir)
	}
	return nil
}
