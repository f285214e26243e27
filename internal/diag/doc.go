// Package diag defines the diagnostic model shared by the unit loader, the
// lowering engine and the driver.
//
// Diagnostic is the central record: severity, a numeric Code with a stable
// string form (CFG, IO, LAY, LOW, OBS ranges), a short message, the primary
// span inside a unit description file, and optional notes.
//
// Producers emit through a Reporter, usually via ReportError/ReportWarning
// builders. BagReporter collects into a Bag, which supports sorting,
// deduplication and an error count that survives the size limit.
//
// Package diag performs no IO. FormatGoldenDiagnostics renders the
// one-line-per-entry form used by tests and the CLI short output.
package diag
