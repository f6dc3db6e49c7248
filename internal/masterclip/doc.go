// Package masterclip keeps a media item's derived stream clips aligned.
//
// A masterclip sequence wraps one media item: at most one video stream clip
// and any number of audio stream clips, each on its own track in its native
// unit. The synchronizer caches the stream clips lazily, converts between
// the sequence's frame rate and the first audio stream's sample rate, and
// reads or writes the shared in/out marks across all streams. A mark is
// reported only when every stream agrees after conversion; otherwise the
// streams are unsynced and the caller gets no value rather than a guess.
package masterclip
