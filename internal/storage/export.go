package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/broomsim/internal/sim"
)

type ExportData struct {
	RunMetadata
	Samples []sim.FrameSample `json:"samples"`
}

func ExportJSON(path string, meta RunMetadata, frames []sim.FrameSample) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, meta, frames)
}

// WriteJSON writes the run as one indented JSON document, e.g. to stdout.
func WriteJSON(w io.Writer, meta RunMetadata, frames []sim.FrameSample) error {
	if frames == nil {
		frames = []sim.FrameSample{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{RunMetadata: meta, Samples: frames})
}
