package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	RunMetadata
	Times        Series   `json:"times"`
	Setpoints    Series   `json:"setpoints"`
	Measurements Series   `json:"measurements"`
	Controls     Series   `json:"controls"`
	Integrals    Series   `json:"integrals"`
	Modes        []string `json:"modes"`
}

// ExportJSON writes a run's metadata and trace as one JSON document.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	result, err := s.LoadTrace(runID)
	if err != nil {
		return err
	}

	data := ExportData{
		RunMetadata:  *meta,
		Times:        result.Times,
		Setpoints:    result.Setpoints,
		Measurements: result.Measurements,
		Controls:     result.Controls,
		Integrals:    result.Integrals,
		Modes:        result.Modes,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
