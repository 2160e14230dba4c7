// Package constants provides shared constants for the cash-tuner application.
package constants

// DateLayout is the calendar date format used for plan rows, the simulation
// axis and all output.
const DateLayout = "2006-01-02"

// Simulation constants
const (
	// HorizonDays is the length of the simulated date axis.
	HorizonDays = 30

	// StressDelayDays is the AR collection delay applied by the S1 scenario.
	StressDelayDays = 7

	// FirstDelayDays and SecondDelayDays are the offsets of the two delayed
	// AR collection portions.
	FirstDelayDays  = 7
	SecondDelayDays = 14

	// MaxDeferralDays bounds AP deferral offsets.
	MaxDeferralDays = 21

	// LowTurnoverDays is the turnover age above which a PO line counts as
	// low turnover.
	LowTurnoverDays = 120

	// TopSupplierFraction is the share of suppliers (by spend) flagged top.
	TopSupplierFraction = 0.2

	// ParamsSchemaVersion is the current TunerParameters schema version.
	ParamsSchemaVersion = 1
)

// Scenario keys
const (
	ScenarioBase = "Base"
	ScenarioS1   = "S1"
	ScenarioS2   = "S2"
	ScenarioS3   = "S3"
)

// Plan row domains
const (
	DomainAR = "AR"
	DomainAP = "AP"
	DomainPO = "PO"

	// DomainEmergency and DomainCoverage tag the synthetic actions.
	DomainEmergency = "EMERGENCY"
	DomainCoverage  = "COVERAGE"
)

// Aging buckets
const (
	BucketNotDue  = "not_due"
	Bucket1To30   = "1_30"
	Bucket31To60  = "31_60"
	Bucket61To90  = "61_90"
	Bucket90Plus  = "90_plus"
	DefaultBucket = Bucket1To30
)

// Default warning thresholds in currency units.
const (
	DefaultGapAmountWarn  = 1200000.0
	DefaultMinBalanceWarn = 600000.0
)

// Action generation defaults
const (
	DefaultActionsPerDomain   = 20
	DefaultEmergencyPerDomain = 5
	DefaultCoverageThreshold  = 0.8
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the machine-readable report format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix prefixes environment overrides read by viper.
	EnvPrefix = "CASHTUNER"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (4 MB)
	DefaultMaxUploadSizeBytes int64 = 4 * 1024 * 1024
)

// Numeric constants
const (
	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// MaxScore bounds every risk sub-score.
	MaxScore = 100.0
)

// UnknownValue is how non-finite or undefined figures are rendered.
const UnknownValue = "unknown"
