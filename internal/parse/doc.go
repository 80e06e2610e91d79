// Package parse turns captured engine output into typed records.
//
// The engine's replies are positional: a value is found at a fixed word of a
// fixed line. Those offsets live in a versioned Grammar so that an engine
// release which shifts a column needs a table entry, not new code. Every
// parser is a pure function of an Output and a Grammar and reports
// mismatches as errors.ParseError with the offending line and word.
//
// Classify maps engine error text onto a small set of patterns so the
// session can raise typed errors for failed opens and expressions.
package parse
