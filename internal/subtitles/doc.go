// Package subtitles parses SRT transcripts into timestamped utterances and
// normalizes cue text for downstream atomization.
package subtitles
