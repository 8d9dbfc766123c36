// Package constants provides named constants used throughout lhvsim.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Run defaults
const (
	// DefaultSeed is the seed used when none is configured.
	DefaultSeed = 1234

	// DefaultTrials is the number of pairs produced per run.
	DefaultTrials = 100000

	// DefaultEntanglementEfficiency is r in the Wang model.
	DefaultEntanglementEfficiency = 0.6

	// HiddenVariableMax is the exclusive upper bound of λ in degrees.
	// The hidden variable lives in [0, HiddenVariableMax).
	HiddenVariableMax = 180.0

	// ProgressEvery is the trial interval between progress log lines.
	ProgressEvery = 500000
)

// Phase boundaries (percent of the run) shared by the skewed random source
// and the entangler. Changing them breaks comparability with earlier runs.
const (
	PhaseOneEnd   = 28.0
	PhaseTwoEnd   = 52.0
	PhaseThreeEnd = 73.0
)

// Random source constants
const (
	// DefaultSkewBias shifts the probability of a setting bit away from 0.5
	// in the biased phases of the skewed source.
	DefaultSkewBias = 0.16

	// BitsPerTrial is the number of setting bits drawn per trial, one per side.
	BitsPerTrial = 2
)

// Entangler constants
const (
	// DefaultPairEfficiency is the base probability of producing an
	// entangled pair in the high-efficiency phase.
	DefaultPairEfficiency = 1.0

	// DefaultPairFactor divides the efficiency in the low phases.
	DefaultPairFactor = 1.9
)

// Model constants
const (
	// DefaultTrivialStrength is k in p = k*|sin(λ - angle)| for the trivial model.
	DefaultTrivialStrength = 2.3
)

// Angle search constants
const (
	// DefaultBatchTrials is the number of trials run per search candidate.
	DefaultBatchTrials = 2000

	// DefaultVerifyTrials is the number of trials used to re-verify a
	// promising candidate before it may be accepted.
	DefaultVerifyTrials = 100000

	// DefaultVerifyTopK bounds how many candidates are re-verified.
	DefaultVerifyTopK = 16

	// SearchProgressEvery is the candidate interval between progress log lines.
	SearchProgressEvery = 10000
)

// Output constants
const (
	// TrialLogFlushBytes is the buffered size at which the trial log is flushed.
	TrialLogFlushBytes = 10000

	// DefaultTrialLogFile is the per-trial CSV log name.
	DefaultTrialLogFile = "log.csv"

	// DefaultSummaryFile is the run summary CSV name.
	DefaultSummaryFile = "summary.csv"

	// DefaultStateFile is the run-state snapshot used by --continue.
	DefaultStateFile = "state.json.gz"

	// DefaultHistoryDB is the SQLite run history database.
	DefaultHistoryDB = "history.db"
)
