package logfile

const (
	DefaultRegionCapacity  = 2000
	DefaultRegionThreshold = 4 * 1024 * 1024

	LogSuffix = ".log"

	beginRegionId    = 1
	beginGlobalIndex = 1
)

type Options struct {
	// RegionCapacity is the number of records after which a region is sealed.
	RegionCapacity int
	// RegionThreshold is the number of extra data + payload bytes a region may hold.
	RegionThreshold int64
	// ForceAfterRegionFull fsyncs a region before rolling over to the next one.
	ForceAfterRegionFull bool
}

func DefaultOptions() Options {
	return Options{
		RegionCapacity:       DefaultRegionCapacity,
		RegionThreshold:      DefaultRegionThreshold,
		ForceAfterRegionFull: true,
	}
}

func (o Options) withDefaults() Options {
	if o.RegionCapacity <= 0 {
		o.RegionCapacity = DefaultRegionCapacity
	}
	if o.RegionThreshold <= 0 {
		o.RegionThreshold = DefaultRegionThreshold
	}
	return o
}
