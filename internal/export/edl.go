// Package export renders a project's breakpoints as editor-friendly
// artifacts: a CMX-style EDL of the segments between breakpoints, or a
// plain CSV cue sheet.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuedeck/cuedeck-agent/internal/timecode"
)

// SegmentsFromBreakpoints splits [0, durationMs) at each breakpoint. A
// breakpoint at 0 or past the duration contributes no segment.
func SegmentsFromBreakpoints(mediaPath string, breakpoints []int64, durationMs int64) []Segment {
	if durationMs <= 0 {
		return nil
	}

	var segments []Segment
	start := int64(0)
	for _, bp := range breakpoints {
		if bp <= start || bp >= durationMs {
			continue
		}
		segments = append(segments, Segment{
			Name:      fmt.Sprintf("Segment %d", len(segments)+1),
			MediaPath: mediaPath,
			StartMs:   start,
			EndMs:     bp,
		})
		start = bp
	}
	segments = append(segments, Segment{
		Name:      fmt.Sprintf("Segment %d", len(segments)+1),
		MediaPath: mediaPath,
		StartMs:   start,
		EndMs:     durationMs,
	})
	return segments
}

func GenerateEDL(segments []Segment, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffsetMs := int64(0)
	for i, seg := range segments {
		srcIn := msToFrameTimecode(seg.StartMs, fps)
		srcOut := msToFrameTimecode(seg.EndMs, fps)
		recIn := msToFrameTimecode(recordOffsetMs, fps)
		durationMs := seg.EndMs - seg.StartMs
		recOut := msToFrameTimecode(recordOffsetMs+durationMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", seg.Name),
			fmt.Sprintf("* MEDIA PATH:  %s", seg.MediaPath),
		)

		recordOffsetMs += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// GenerateCueCSV writes one row per segment using the same HH:MM:SS.mmm
// display format the player shows.
func GenerateCueCSV(segments []Segment, title string) string {
	lines := []string{
		fmt.Sprintf("# %s", title),
		"index,start,end,name",
	}
	for i, seg := range segments {
		lines = append(lines, fmt.Sprintf("%d,%s,%s,%s",
			i+1, timecode.Format(seg.StartMs), timecode.Format(seg.EndMs), seg.Name))
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// WriteCueSheet renders the requested format into the output directory and
// returns where it landed.
func WriteCueSheet(req Request, projectName, mediaPath string, breakpoints []int64, durationMs int64) (*Response, error) {
	if err := checkOutputDir(req.OutputDir); err != nil {
		return nil, err
	}

	segments := SegmentsFromBreakpoints(mediaPath, breakpoints, durationMs)
	if len(segments) == 0 {
		return nil, fmt.Errorf("nothing to export: duration unknown")
	}

	var content, ext string
	switch req.Format {
	case "edl":
		content = GenerateEDL(segments, projectName, req.FrameRate)
		ext = ".edl"
	case "csv", "":
		content = GenerateCueCSV(segments, projectName)
		ext = ".csv"
	default:
		return nil, fmt.Errorf("unsupported export format %q", req.Format)
	}

	outputPath := filepath.Join(req.OutputDir, cueSheetFileName(projectName, ext))
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}

	return &Response{
		Status:       "ok",
		Format:       strings.TrimPrefix(ext, "."),
		OutputPath:   outputPath,
		SegmentCount: len(segments),
	}, nil
}

func msToFrameTimecode(ms int64, fps int) string {
	totalFrames := int64(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % int64(fps)
	totalSeconds := totalFrames / int64(fps)
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
