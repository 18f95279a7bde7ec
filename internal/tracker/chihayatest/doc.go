// Package chihayatest runs the UDP and HTTP tracker clients against in-process chihaya trackers.
//
// The tests live in their own package because chihaya starts background goroutines when it is
// imported, which would show up as leaks in the goroutine checks of the client packages.
package chihayatest
