package types

// ProjectConfig is the root of songflow.yaml. It is constructed once at
// startup and passed into each component; nothing reads configuration from
// process-global state.
type ProjectConfig struct {
	Pipeline  string          `yaml:"pipeline" json:"pipeline"`
	Provider  Provider        `yaml:"provider" json:"provider"`
	Source    SourceConfig    `yaml:"source" json:"source"`
	Landing   LandingConfig   `yaml:"landing" json:"landing"`
	Warehouse WarehouseConfig `yaml:"warehouse" json:"warehouse"`
	Retry     RetryPolicy     `yaml:"retry,omitempty" json:"retry,omitempty"`
	AWS       *AWSConfig      `yaml:"aws,omitempty" json:"aws,omitempty"`
	Local     *LocalConfig    `yaml:"local,omitempty" json:"local,omitempty"`
	Alerts    []AlertConfig   `yaml:"alerts,omitempty" json:"alerts,omitempty"`
}

// SourceConfig describes the page the fetcher scrapes and how to address
// the three aligned sequences within it. The selectors are the single
// point of coupling to the station's markup.
type SourceConfig struct {
	URL            string `yaml:"url" json:"url"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty" json:"timeoutSeconds,omitempty"`
	TimeSelector   string `yaml:"timeSelector,omitempty" json:"timeSelector,omitempty"`
	TitleSelector  string `yaml:"titleSelector,omitempty" json:"titleSelector,omitempty"`
	ArtistSelector string `yaml:"artistSelector,omitempty" json:"artistSelector,omitempty"`
	Sentinel       string `yaml:"sentinel,omitempty" json:"sentinel,omitempty"`
}

// LandingConfig names the landing objects.
type LandingConfig struct {
	BaseName string `yaml:"baseName,omitempty" json:"baseName,omitempty"`
}

// WarehouseConfig names the relations on the query-engine side.
type WarehouseConfig struct {
	BridgeTable   string `yaml:"bridgeTable,omitempty" json:"bridgeTable,omitempty"`
	StagingTable  string `yaml:"stagingTable,omitempty" json:"stagingTable,omitempty"`
	DatamartTable string `yaml:"datamartTable,omitempty" json:"datamartTable,omitempty"`
}

// RetryPolicy configures the bounded retry applied around every network and
// query-engine call.
type RetryPolicy struct {
	MaxAttempts           int     `yaml:"maxAttempts,omitempty" json:"maxAttempts,omitempty"`
	BackoffSeconds        int     `yaml:"backoffSeconds,omitempty" json:"backoffSeconds,omitempty"`
	BackoffMultiplier     float64 `yaml:"backoffMultiplier,omitempty" json:"backoffMultiplier,omitempty"`
	AttemptTimeoutSeconds int     `yaml:"attemptTimeoutSeconds,omitempty" json:"attemptTimeoutSeconds,omitempty"`
}

// AWSConfig holds settings for the aws provider: S3 landing/archive buckets,
// the Glue/Athena warehouse, and the DynamoDB run lock.
type AWSConfig struct {
	Region               string `yaml:"region" json:"region"`
	Endpoint             string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	LandingBucket        string `yaml:"landingBucket" json:"landingBucket"`
	LandingPrefix        string `yaml:"landingPrefix,omitempty" json:"landingPrefix,omitempty"`
	ArchiveBucket        string `yaml:"archiveBucket" json:"archiveBucket"`
	ArchivePrefix        string `yaml:"archivePrefix,omitempty" json:"archivePrefix,omitempty"`
	LockTable            string `yaml:"lockTable" json:"lockTable"`
	GlueDatabase         string `yaml:"glueDatabase" json:"glueDatabase"`
	AthenaWorkgroup      string `yaml:"athenaWorkgroup,omitempty" json:"athenaWorkgroup,omitempty"`
	AthenaOutputLocation string `yaml:"athenaOutputLocation" json:"athenaOutputLocation"`
}

// LocalConfig holds settings for the local provider: filesystem landing and
// archive directories, an embedded DuckDB database, and a flock lock file.
type LocalConfig struct {
	LandingDir   string `yaml:"landingDir" json:"landingDir"`
	ArchiveDir   string `yaml:"archiveDir" json:"archiveDir"`
	DatabasePath string `yaml:"databasePath" json:"databasePath"`
	LockFile     string `yaml:"lockFile,omitempty" json:"lockFile,omitempty"`
}

// AlertConfig configures one alert sink.
type AlertConfig struct {
	Type     SinkType `yaml:"type" json:"type"`
	Path     string   `yaml:"path,omitempty" json:"path,omitempty"`
	TopicARN string   `yaml:"topicArn,omitempty" json:"topicArn,omitempty"`
}
