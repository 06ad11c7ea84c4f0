package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"mediabot/internal/config"
)

// Requirement defines an external binary the processors rely on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig lists the external tools the configured bot needs. rembg is
// optional: without it the remove_background operation reports a
// configuration error but everything else works.
func ForConfig(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Tools.FFmpegBinary, Description: "Video transcoding, trimming, merging, and captioning"},
		{Name: "FFprobe", Command: cfg.Tools.FFprobeBinary, Description: "Stream and container inspection"},
		{Name: "Ghostscript", Command: cfg.Tools.GhostscriptBinary, Description: "PDF compression"},
		{Name: "Tesseract", Command: cfg.Tools.TesseractBinary, Description: "Searchable-PDF OCR output"},
		{Name: "rembg", Command: cfg.Tools.RembgBinary, Description: "Image background removal", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
