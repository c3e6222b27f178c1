// Package extractors provides the extraction strategies that turn raw files
// into ordered sections, and the registry that tries them in priority order.
//
// Each strategy lives in its own package and knows one family of formats.
// The registry picks every strategy that claims the MIME type, runs them
// highest priority first, and returns the first non-empty result. A plain
// text strategy catches files that are plausibly text when nothing else does.
package extractors
