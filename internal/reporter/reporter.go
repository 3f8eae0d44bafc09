// Package reporter writes the analysis report to the output directory in the
// configured formats.
package reporter

import (
	"fmt"

	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/pkg/config"
)

// Reporter writes a report in one or more formats.
type Reporter interface {
	Generate(report *models.Report) error
}

type reporter struct {
	config *config.Config
}

// New creates a reporter for the configured output format.
func New(cfg *config.Config) Reporter {
	return &reporter{config: cfg}
}

// Generate writes the report. Format "json" writes report.json, "text"
// writes report.txt and echoes it to stdout, "all" writes both.
func (r *reporter) Generate(report *models.Report) error {
	switch r.config.Format {
	case "json":
		return WriteJSON(report, r.config)
	case "text":
		return WriteText(report, r.config)
	case "all":
		if err := WriteJSON(report, r.config); err != nil {
			return err
		}
		return WriteText(report, r.config)
	default:
		return fmt.Errorf("unknown report format: %q", r.config.Format)
	}
}
