// Package timebase provides rational time arithmetic for the editing core.
//
// Every timeline coordinate is an integer count of a named base unit: frames
// for video-rate tracks and samples for audio-rate tracks. A Rate pairs an
// integer numerator and denominator (units per second) and is mandatory
// metadata on every sequence, clip, and media item. Floating point never
// enters timeline arithmetic; conversions between rates truncate toward
// negative infinity so repeated conversions stay stable at unit granularity.
//
// Round-trip equality across two rates is not guaranteed and callers must not
// assume it.
package timebase
