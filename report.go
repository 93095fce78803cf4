package iac

import (
	"os"
	"time"

	"github.com/goccy/go-json"
)

// TileReport describes one delivered tile.
type TileReport struct {
	ID       byte `json:"id"`
	Row      int  `json:"row"`
	Col      int  `json:"col"`
	Bytes    int  `json:"bytes"`
	Blocks   int  `json:"blocks"`
	Attempts int  `json:"attempts"`
	Skipped  bool `json:"skipped,omitempty"`
}

// Report summarises a delivery run. Tiles lists every tile that was
// delivered or skipped, in the order they were handled.
type Report struct {
	RunID     string        `json:"run_id,omitempty"`
	Source    string        `json:"source"`
	Image     string        `json:"image"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Divisions int           `json:"divisions"`
	BlockSize int           `json:"block_size"`
	Tiles     []TileReport  `json:"tiles"`
	Frames    int           `json:"frames"`
	Attempts  int           `json:"attempts"`
	Retries   int           `json:"retries"`
	Started   time.Time     `json:"started"`
	Elapsed   time.Duration `json:"elapsed"`
	Error     string        `json:"error,omitempty"`
}

// Delivered returns the number of tiles sent during this run.
func (r *Report) Delivered() int {
	n := 0
	for _, t := range r.Tiles {
		if !t.Skipped {
			n++
		}
	}
	return n
}

// WriteReports writes the reports to path as indented JSON.
func WriteReports(path string, reports ...*Report) error {
	var v interface{} = reports
	if len(reports) == 1 {
		v = reports[0]
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(b, '\n'), 0o644)
}
