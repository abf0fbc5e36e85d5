package config

import (
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var portCmd = flag.Int("port", 3000, "HTTP server port")

const (
	defaultDataDirectory  = "data"
	defaultZmqApiPort     = 5555
	defaultFindCacheSize  = 4096
	defaultMemTableMax    = 2000
	defaultMemTableBytes  = 4 * 1024 * 1024
	defaultRegionCapacity = 2000
	defaultRegionBytes    = 4 * 1024 * 1024
)

type Config struct {
	InstanceId            string
	ServerPort            int
	ZmqApiPort            int
	DataDirectory         string
	SequencerUrl          string
	SequencerSubscribeUrl string
	DeploymentMode        string
	MemTableMaxEntries    int
	MemTableMaxBytes      int
	LogRegionCapacity     int
	LogRegionThreshold    int64
	ForceAfterRegionFull  bool
	FindCacheSize         int
}

func LoadConfig() Config {
	godotenv.Load(".env")
	return Config{
		InstanceId:            stringEnv("INSTANCE_ID", uuid.NewString()),
		ServerPort:            *portCmd,
		ZmqApiPort:            intEnv("ZMQ_API_PORT", defaultZmqApiPort),
		DataDirectory:         stringEnv("DATA_DIRECTORY", defaultDataDirectory),
		SequencerUrl:          os.Getenv("SEQUENCER_URL"),
		SequencerSubscribeUrl: os.Getenv("SEQUENCER_SUBSCRIBE_URL"),
		DeploymentMode:        os.Getenv("DEPLOYMENT_MODE"),
		MemTableMaxEntries:    intEnv("MEMTABLE_MAX_ENTRIES", defaultMemTableMax),
		MemTableMaxBytes:      intEnv("MEMTABLE_MAX_BYTES", defaultMemTableBytes),
		LogRegionCapacity:     intEnv("LOG_REGION_CAPACITY", defaultRegionCapacity),
		LogRegionThreshold:    int64(intEnv("LOG_REGION_THRESHOLD", defaultRegionBytes)),
		ForceAfterRegionFull:  boolEnv("FORCE_AFTER_REGION_FULL", true),
		FindCacheSize:         intEnv("FIND_CACHE_SIZE", defaultFindCacheSize),
	}
}

func stringEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func intEnv(name string, fallback int) int {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", name, value, fallback)
		return fallback
	}
	return n
}

func boolEnv(name string, fallback bool) bool {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %t", name, value, fallback)
		return fallback
	}
	return b
}
