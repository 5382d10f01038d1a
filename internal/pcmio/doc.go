// Package pcmio reads and writes the audio files used by the command-line
// tools.
//
// Sources decode WAV and AIFF through go-audio, MP3 through go-mp3 and Ogg
// Vorbis through oggvorbis. Every source yields interleaved float64
// samples scaled to [-1, 1]. Sinks encode integer PCM WAV or AIFF.
package pcmio
