package media

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// probeOutput is the subset of `ffprobe -print_format json` output we read.
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// parseProbeOutput extracts duration and dimensions from ffprobe JSON.
// The container duration wins over the stream duration when both are present.
func parseProbeOutput(data []byte) (Probe, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Probe{}, err
	}

	for _, stream := range out.Streams {
		if stream.CodecType != "video" {
			continue
		}

		duration, err := parseDuration(out.Format.Duration)
		if err != nil || duration == 0 {
			duration, err = parseDuration(stream.Duration)
			if err != nil {
				return Probe{}, err
			}
		}

		return Probe{
			Duration: duration,
			Width:    stream.Width,
			Height:   stream.Height,
		}, nil
	}

	return Probe{}, ErrNoVideoStream
}

// parseDuration parses an ffprobe duration string. Missing values ("" or "N/A") are zero.
func parseDuration(s string) (float64, error) {
	if s == "" || s == "N/A" {
		return 0, nil
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// detectFormat sniffs the MIME type of the file at path, without parameters.
func detectFormat(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	format, _, _ := strings.Cut(mtype.String(), ";")
	return strings.TrimSpace(format), nil
}
