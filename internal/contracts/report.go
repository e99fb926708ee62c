package contracts

// Scalar is a single number shown in the report; unit and source are mandatory
type Scalar struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Source string  `json:"source"`
	AsOf   string  `json:"as_of,omitempty"`
}

// ReadingBlock is one headline block of the daily reading
type ReadingBlock struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"` // grains, livestock, spread, metals
}

// ReadingQuestion is one of the four fixed questions with its answer
type ReadingQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ReadingSummary condenses the day in three lines
type ReadingSummary struct {
	StocksWatch       string `json:"stocks_watch"`
	Spreads           string `json:"spreads"`
	PriceVsHistorical string `json:"preco_vs_historico"`
}

// DailyReading is processed/daily_reading.json
type DailyReading struct {
	Date      string            `json:"date"`
	Blocks    []ReadingBlock    `json:"blocks"`
	Questions []ReadingQuestion `json:"questions"`
	Summary   ReadingSummary    `json:"resumo"`
	Sources   []string          `json:"sources"`
}

// ReportSection is one prose section of the report narrative
type ReportSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ReportDaily is processed/report_daily.json, the narrative the PDF renders
type ReportDaily struct {
	Date      string            `json:"date"`
	Headline  string            `json:"headline"`
	Sections  []ReportSection   `json:"sections"`
	Scalars   map[string]Scalar `json:"scalars"`
	Generator string            `json:"generator"`
}

// Text returns all prose of the report for language checks
func (r ReportDaily) Text() string {
	out := r.Headline
	for _, s := range r.Sections {
		out += "\n" + s.Title + "\n" + s.Body
	}
	return out
}

// VideoScene is one narrated scene
type VideoScene struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Narration string `json:"narration"`
	DurationS int    `json:"duration_s"`
	Visual    string `json:"visual,omitempty"`
}

// VideoScript is processed/video_script.json
type VideoScript struct {
	Date       string       `json:"date"`
	Title      string       `json:"title"`
	Scenes     []VideoScene `json:"scenes"`
	Verdict    string       `json:"verdict"`
	Disclaimer string       `json:"disclaimer"`
}
