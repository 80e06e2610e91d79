package config

// ByteOrder names for Options.ByteOrder.
const (
	ByteOrderLittle = "little"
	ByteOrderBig    = "big"
)

// Grammar versions for Options.Grammar.
const (
	// GrammarV1 matches engines that omit the ensemble axis.
	GrammarV1 = "1"
	// GrammarV2 matches engines with the ensemble axis. It is the default.
	GrammarV2 = "2"
)
