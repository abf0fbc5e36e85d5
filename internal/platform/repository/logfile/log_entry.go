package logfile

// LogEntry is one immutable record addressed by its global index.
type LogEntry struct {
	Index     int64
	ExtraData []byte
	Payload   []byte
}

// RegionInfo describes the global index range [Begin, End] owned by a region.
// An empty region has End == Begin-1.
type RegionInfo struct {
	Id    int
	Begin int64
	End   int64
}
