package export

type Request struct {
	Format    string  `json:"format"`
	FrameRate float64 `json:"frame_rate"`
	OutputDir string  `json:"output_dir"`
}

// Segment is one stretch of the show between consecutive breakpoints.
type Segment struct {
	Name      string
	MediaPath string
	StartMs   int64
	EndMs     int64
}

type Response struct {
	Status       string `json:"status"`
	Format       string `json:"format"`
	OutputPath   string `json:"output_path"`
	SegmentCount int    `json:"segment_count"`
}
