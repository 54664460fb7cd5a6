package store

// Backend names accepted in Config.Backend.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendDynamoDB = "dynamodb"
)

// Config holds configuration for the document store connection.
// This uses a tagged union pattern - Backend determines which other fields are relevant.
type Config struct {
	// Backend selects the implementation: "mongo", "dynamodb" or "memory".
	// Default: "mongo"
	Backend string `toml:"backend"`

	// URI is the MongoDB connection string.
	// Default: "mongodb://127.0.0.1:27017"
	URI string `toml:"uri,omitempty"`

	// Database is the MongoDB database name.
	// Default: "swift-assignment"
	Database string `toml:"database,omitempty"`

	// Region is the AWS region for the DynamoDB backend.
	Region string `toml:"region,omitempty"`

	// Endpoint overrides the DynamoDB endpoint (e.g. DynamoDB Local).
	Endpoint string `toml:"endpoint,omitempty"`

	// TablePrefix is prepended to collection names to form DynamoDB table names.
	TablePrefix string `toml:"table_prefix,omitempty"`

	// NumShards is the number of concurrent batch writers used by the DynamoDB backend.
	// Default: 4
	// Max: 64
	NumShards int `toml:"num_shards,omitempty"`

	// CreateTables creates missing DynamoDB tables on startup.
	CreateTables bool `toml:"create_tables,omitempty"`
}

// DefaultConfig returns settings matching a local MongoDB instance.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendMongo,
		URI:       "mongodb://127.0.0.1:27017",
		Database:  "swift-assignment",
		Region:    "us-east-1",
		NumShards: 4,
	}
}

// Validate ensures config values are within acceptable bounds.
func (c *Config) Validate() {
	d := DefaultConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.URI == "" {
		c.URI = d.URI
	}
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.Region == "" {
		c.Region = d.Region
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > 64 {
		c.NumShards = 64
	}
}
