// Command stageprof profiles the mel/encode/decode stages of a single
// transcription run, for use with go tool pprof.
package main

import "github.com/example/whispergo/internal/bench/stageprof"

func main() {
	stageprof.Main()
}
