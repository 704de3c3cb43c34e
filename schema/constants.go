package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching and run storage.
	DatabaseBackend string

	// Language names a grammar handled by the parser registry.
	Language string

	// RiskTier is the qualitative class of a hotspot score.
	RiskTier string

	// StructuralConstruct names a countable element of a structural document.
	StructuralConstruct string

	// AggregationFunc names a function that combines child KPI values.
	AggregationFunc string

	// HistoryStatus explains whether history for a path is available.
	HistoryStatus string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// Languages with a registered parser.
const (
	Python     Language = "python"
	Go         Language = "go"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Java       Language = "java"
	Rust       Language = "rust"
	JSON       Language = "json"
	YAML       Language = "yaml"
	TOML       Language = "toml"
	Thrift     Language = "thrift"
)

// Risk tiers in ascending order of severity.
const (
	TierLow      RiskTier = "low"
	TierMedium   RiskTier = "medium"
	TierHigh     RiskTier = "high"
	TierCritical RiskTier = "critical"
)

// Rank orders tiers so they can be compared; unknown tiers rank below low.
func (t RiskTier) Rank() int {
	switch t {
	case TierLow:
		return 1
	case TierMedium:
		return 2
	case TierHigh:
		return 3
	case TierCritical:
		return 4
	}
	return 0
}

// Default hotspot tier thresholds. A score below medium is low.
const (
	DefaultMediumThreshold   = 50.0
	DefaultHighThreshold     = 200.0
	DefaultCriticalThreshold = 500.0
)

// Structural constructs counted by the config-file and IDL parsers.
const (
	ConstructObject      StructuralConstruct = "object"
	ConstructArray       StructuralConstruct = "array"
	ConstructKey         StructuralConstruct = "key"
	ConstructInterface   StructuralConstruct = "interface"
	ConstructRecord      StructuralConstruct = "record"
	ConstructUnion       StructuralConstruct = "union"
	ConstructError       StructuralConstruct = "error"
	ConstructOperation   StructuralConstruct = "operation"
	ConstructEnum        StructuralConstruct = "enum"
	ConstructAlias       StructuralConstruct = "alias"
	ConstructField       StructuralConstruct = "field"
	ConstructInheritance StructuralConstruct = "inheritance"
	ConstructCollection  StructuralConstruct = "collection"
	ConstructNesting     StructuralConstruct = "nesting"
)

// DefaultStructuralWeights holds the per-construct weights of structural complexity.
// The nesting weight applies to every container level beyond the first.
var DefaultStructuralWeights = map[StructuralConstruct]float64{
	ConstructObject:      1.0,
	ConstructArray:       1.0,
	ConstructKey:         0.1,
	ConstructInterface:   2.0,
	ConstructRecord:      1.0,
	ConstructUnion:       1.5,
	ConstructError:       1.0,
	ConstructOperation:   1.0,
	ConstructEnum:        0.5,
	ConstructAlias:       0.5,
	ConstructField:       0.1,
	ConstructInheritance: 1.0,
	ConstructCollection:  0.5,
	ConstructNesting:     0.5,
}

// Aggregation functions.
const (
	AggSum  AggregationFunc = "sum"
	AggMean AggregationFunc = "mean"
	AggMax  AggregationFunc = "max"
	AggMin  AggregationFunc = "min"
)

// ValidAggregationFuncs lists all valid aggregation functions.
var ValidAggregationFuncs = map[AggregationFunc]struct{}{
	AggSum:  {},
	AggMean: {},
	AggMax:  {},
	AggMin:  {},
}

// DefaultAggregations is the metric to aggregation function table. Metrics not
// listed here are aggregated with the mean.
var DefaultAggregations = map[string]AggregationFunc{
	MetricCyclomatic:   AggMean,
	MetricCognitive:    AggMean,
	MetricOwnership:    AggMean,
	MetricSharedOwners: AggMean,
	MetricChurn:        AggSum,
	MetricLinesChanged: AggSum,
	MetricFunctions:    AggSum,
	MetricHotspot:      AggMax,
}

// History availability statuses.
const (
	HistoryAvailable HistoryStatus = "available"
	HistoryUntracked HistoryStatus = "untracked"
	HistoryNone      HistoryStatus = "no_history"
	HistoryTimedOut  HistoryStatus = "timed_out"
	HistoryFailed    HistoryStatus = "failed"
)

// Available reports whether the status carries usable history.
func (s HistoryStatus) Available() bool {
	return s == HistoryAvailable
}

// ModulePseudoFunction is the name given to top-level code with decision points.
const ModulePseudoFunction = "<module>"

// MaxSyntaxDepth bounds every recursive syntax walk.
const MaxSyntaxDepth = 4096
