package mission

import "time"

type SourceResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"publishedDate,omitempty"`
}

// Phase tags which synthesis pass produced a Results value.
type Phase string

const (
	PhaseBasic         Phase = "basic"
	PhaseComprehensive Phase = "comprehensive"
	PhaseDegraded      Phase = "degraded"
)

type Results struct {
	Summary                           string         `json:"summary"`
	KeyFindings                       []string       `json:"keyFindings"`
	Sources                           []SourceResult `json:"sources"`
	Recommendations                   []string       `json:"recommendations,omitempty"`
	CompletedSteps                    int            `json:"completedSteps"`
	TotalSteps                        int            `json:"totalSteps"`
	IsGeneratingComprehensiveAnalysis bool           `json:"isGeneratingComprehensiveAnalysis"`
	Phase                             Phase          `json:"phase"`
	GeneratedAt                       time.Time      `json:"generatedAt"`
}

func (r Results) Clone() Results {
	out := r
	out.KeyFindings = append([]string(nil), r.KeyFindings...)
	out.Sources = append([]SourceResult(nil), r.Sources...)
	out.Recommendations = append([]string(nil), r.Recommendations...)
	if r.KeyFindings != nil && out.KeyFindings == nil {
		out.KeyFindings = []string{}
	}
	if r.Sources != nil && out.Sources == nil {
		out.Sources = []SourceResult{}
	}
	return out
}
