package model

import "fmt"

type Manifest struct {
	Repo  string      `json:"repo"`
	Files []ModelFile `json:"files"`
}

type ModelFile struct {
	Filename  string `json:"filename"`
	Revision  string `json:"revision"`
	SHA256    string `json:"sha256"`
	LocalPath string `json:"local_path,omitempty"` // Override local save path (defaults to Filename).
}

// PinnedManifest resolves a short model name to the ggml file that backs it.
// Checksums are left blank and resolved from Hugging Face file metadata at
// download time, then persisted into a local lock manifest.
func PinnedManifest(name string) (Manifest, error) {
	const repo = "ggerganov/whisper.cpp"

	revision, ok := ggmlRevisions[name]
	if !ok {
		return Manifest{}, fmt.Errorf("no pinned manifest for model %q", name)
	}

	return Manifest{
		Repo: repo,
		Files: []ModelFile{
			{
				Filename: "ggml-" + name + ".bin",
				Revision: revision,
			},
		},
	}, nil
}

// ggmlRevisions maps each supported model size to the revision its file is
// downloaded from. Every entry is the repo's main branch, so a download
// follows that branch rather than a fixed commit.
var ggmlRevisions = map[string]string{
	"tiny":        "main",
	"tiny.en":     "main",
	"base":        "main",
	"base.en":     "main",
	"small":       "main",
	"small.en":    "main",
	"medium":      "main",
	"medium.en":   "main",
	"large-v3":    "main",
}
