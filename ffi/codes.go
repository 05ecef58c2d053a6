package ffi

// Return codes (must match ericapi/eric_fehlercodes.h).
const (
	CodeOK                = 0
	CodeGlobalUnknown     = 610001001
	CodeGlobalPruefFehler = 610001002
)

// Wrapper-local codes. Negative so they never collide with engine codes.
const (
	CodeLibraryNotLoaded     = -1
	CodeSymbolMissing        = -2
	CodeInvalidHandle        = -3
	CodeUnsupportedLayout    = -4
	CodeCallbacksUnsupported = -5
)

// Flag selects the steps EricBearbeiteVorgang performs.
type Flag uint32

// Processing flags (eric_bearbeitung_flag_t).
const (
	FlagValidate Flag = 1 << 1
	FlagSend     Flag = 1 << 2
	FlagPrint    Flag = 1 << 5
)

// Has reports whether all bits of other are set.
func (f Flag) Has(other Flag) bool { return f&other == other }

// LogLevel mirrors eric_log_level_t.
type LogLevel int32

const (
	LogTrace LogLevel = iota
	LogDebug
	LogInfo
	LogWarn
	LogError
)
