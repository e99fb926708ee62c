package contracts

// Severity of an audit finding
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityFlag  Severity = "FLAG"
	SeverityBlock Severity = "BLOCK"
)

// Rank orders severities (INFO < WARN < FLAG < BLOCK)
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarn:
		return 2
	case SeverityFlag:
		return 3
	case SeverityBlock:
		return 4
	default:
		return 0
	}
}

// Finding codes
// ⭐ SSOT: 감사 결과 코드는 여기서만 정의
const (
	CodeMissingCritical       = "MISSING_CRITICAL_DATA"
	CodeMissingData           = "MISSING_DATA"
	CodeMissingOptional       = "MISSING_OPTIONAL_DATA"
	CodeVeryStale             = "VERY_STALE_DATA"
	CodeStale                 = "STALE_DATA"
	CodeRangeCritical         = "RANGE_CRITICAL"
	CodeRangeError            = "RANGE_ERROR"
	CodeUnitMismatch          = "UNIT_MISMATCH"
	CodeSpreadMismatch        = "SPREAD_MISMATCH"
	CodeSpreadMissing         = "SPREAD_MISSING"
	CodeStocksExtreme         = "STOCKS_EXTREME"
	CodeStocksOutlier         = "STOCKS_OUTLIER"
	CodeMixedSeries           = "MIXED_SERIES"
	CodeCrossPageMismatch     = "CROSS_PAGE_MISMATCH"
	CodeLanguageOverstatement = "LANGUAGE_OVERSTATEMENT"
	CodeNoMeta                = "NO_META"
	CodeCheckError            = "CHECK_ERROR"
)

// Finding is one audit observation
type Finding struct {
	Severity  Severity               `json:"severity"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// Verdict statuses
const (
	VerdictPass  = "PASS"
	VerdictWarn  = "WARN"
	VerdictFlag  = "FLAG"
	VerdictBlock = "BLOCK"
)

// Verdict is the audit gate's decision for one run
type Verdict struct {
	Status     string    `json:"status"`
	Confidence int       `json:"confidence"`
	Findings   []Finding `json:"findings"`
	CanPublish bool      `json:"can_publish"`
}

// NewVerdict aggregates findings: worst severity wins,
// confidence = 100 − 25·BLOCK − 10·FLAG − 3·WARN (floor 0)
func NewVerdict(findings []Finding) Verdict {
	worst := Severity("")
	blocks, flags, warns := 0, 0, 0
	for _, f := range findings {
		switch f.Severity {
		case SeverityBlock:
			blocks++
		case SeverityFlag:
			flags++
		case SeverityWarn:
			warns++
		}
		if f.Severity.Rank() > worst.Rank() {
			worst = f.Severity
		}
	}

	status := VerdictPass
	switch worst {
	case SeverityBlock:
		status = VerdictBlock
	case SeverityFlag:
		status = VerdictFlag
	case SeverityWarn:
		status = VerdictWarn
	}

	confidence := 100 - 25*blocks - 10*flags - 3*warns
	if confidence < 0 {
		confidence = 0
	}

	if findings == nil {
		findings = []Finding{}
	}

	return Verdict{
		Status:     status,
		Confidence: confidence,
		Findings:   findings,
		CanPublish: status != VerdictBlock,
	}
}

// Count returns the number of findings with the given severity
func (v Verdict) Count(sev Severity) int {
	n := 0
	for _, f := range v.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}
