// Package speech drives a continuous dictation session on top of a
// platform speech recognizer.
//
// A Manager owns one Recognizer and translates its events (start, result,
// error, end) into three plain callbacks: transcript changes, listening
// changes and errors. Final results accumulate into the transcript while
// interim results are only shown in the notification that carries them.
// When the platform ends a session on its own while the caller still wants
// to listen, the Manager restarts it without reporting a stop.
//
// Dictation wraps a Manager into the value object consumed by editors.
package speech
