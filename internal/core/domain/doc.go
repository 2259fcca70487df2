// Package domain holds the repository model the media filter works on.
//
// An Item owns named Bundles; a Bundle holds Bitstreams, each typed by a
// BitstreamFormat from the format registry. Filters read bitstreams from the
// ORIGINAL bundle and file derived ones into the bundle their
// FilterDescriptor names (TEXT, THUMBNAIL). A run over the repository is
// summarised by a RunReport, and scheduled runs by TaskResult.
//
// The package imports only the standard library. Everything else in the
// module depends on it.
package domain
