package repository

import "os"

// Mode represents the repository backend mode
type Mode string

const (
	ModeLocal  Mode = "local"  // DynamoDB local endpoint
	ModeAWS    Mode = "aws"    // real AWS DynamoDB
	ModeMemory Mode = "memory" // in-process map, for dev and tests
)

// Config holds repository configuration
type Config struct {
	Mode           Mode
	Endpoint       string // for local mode
	Region         string
	AgentsTable    string
	HistoryTable   string
	GeofencesTable string
}

// LoadConfig loads repository config from environment
func LoadConfig() Config {
	mode := Mode(getEnv("REPO_MODE", "memory"))
	if mode != ModeLocal && mode != ModeAWS {
		mode = ModeMemory
	}

	return Config{
		Mode:           mode,
		Endpoint:       getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
		Region:         getEnv("DYNAMO_REGION", "eu-central-1"),
		AgentsTable:    getEnv("DYNAMO_AGENTS_TABLE", "fieldtrack-agents"),
		HistoryTable:   getEnv("DYNAMO_HISTORY_TABLE", "fieldtrack-position-history"),
		GeofencesTable: getEnv("DYNAMO_GEOFENCES_TABLE", "fieldtrack-geofences"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
