package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Segment describes a segment row in a transport-friendly format.
type Segment struct {
	SegmentID           string `json:"segmentId"`
	StartMS             int64  `json:"startMs"`
	EndMS               int64  `json:"endMs"`
	DurationMS          int64  `json:"durationMs"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	AtomCount           int    `json:"atomCount"`
	Status              string `json:"status"`
	AtomizationComplete bool   `json:"atomizationComplete"`
	AnalysisComplete    bool   `json:"analysisComplete"`
	EntityCount         int    `json:"entityCount"`
	ErrorMessage        string `json:"errorMessage,omitempty"`
	UpdatedAt           string `json:"updatedAt,omitempty"`
}

// Atom describes one transcript atom.
type Atom struct {
	AtomID       string `json:"atomId"`
	StartMS      int64  `json:"startMs"`
	EndMS        int64  `json:"endMs"`
	DurationMS   int64  `json:"durationMs"`
	Text         string `json:"text"`
	Type         string `json:"type"`
	Completeness string `json:"completeness"`
}

// Entity summarizes an aggregated entity record.
type Entity struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Mentions int      `json:"mentions"`
	Atoms    []string `json:"atoms"`
	Segments []string `json:"segments"`
	Context  []string `json:"context,omitempty"`
}

// Topic summarizes an aggregated topic record.
type Topic struct {
	Name     string   `json:"name"`
	Weight   int      `json:"weight"`
	Segments []string `json:"segments"`
}

// GraphSummary reports aggregate knowledge-graph size.
type GraphSummary struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Progress reports analysis progress for one project.
type Progress struct {
	State          string  `json:"state"`
	CurrentSegment string  `json:"currentSegment,omitempty"`
	TotalSegments  int     `json:"totalSegments"`
	Analyzed       int     `json:"analyzed"`
	Analyzing      int     `json:"analyzing"`
	Pending        int     `json:"pending"`
	Failed         int     `json:"failed"`
	Percent        float64 `json:"percent"`
	TotalEntities  int     `json:"totalEntities"`
	LastError      string  `json:"lastError,omitempty"`
}

// SearchResult is one ranked search hit.
type SearchResult struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// DaemonStatus reports daemon runtime information.
type DaemonStatus struct {
	Running      bool     `json:"running"`
	PID          int      `json:"pid"`
	DataDir      string   `json:"dataDir"`
	LockFilePath string   `json:"lockFilePath"`
	Projects     []string `json:"projects"`
}

// Response envelopes keep list payloads extensible.
type SegmentListResponse struct {
	Segments []Segment `json:"segments"`
}

type SegmentResponse struct {
	Segment Segment `json:"segment"`
}

type AtomListResponse struct {
	Atoms []Atom `json:"atoms"`
}

type EntityListResponse struct {
	Entities []Entity `json:"entities"`
}

type TopicListResponse struct {
	Primary   []Topic  `json:"primaryTopics"`
	Secondary []Topic  `json:"secondaryTopics"`
	Tags      []string `json:"tags"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

type ProjectListResponse struct {
	Projects []string `json:"projects"`
}
