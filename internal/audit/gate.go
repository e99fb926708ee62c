package audit

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/registry"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// EngineName is the engine field of qa_report.json
const EngineName = "AgriMacro AA+QA Engine"

// CheckFunc inspects the inputs and returns zero or more findings
type CheckFunc func(reg *registry.Registry, in *Inputs) []contracts.Finding

// Check is one named entry of the catalogue
type Check struct {
	Name string
	Run  CheckFunc
}

// Catalogue returns the checks in execution order
// ⭐ SSOT: 감사 항목 목록
func Catalogue() []Check {
	return []Check{
		{Name: "availability", Run: CheckAvailability},
		{Name: "freshness", Run: CheckFreshness},
		{Name: "range", Run: CheckRanges},
		{Name: "units", Run: CheckUnits},
		{Name: "spreads", Run: CheckSpreads},
		{Name: "stocks", Run: CheckStocks},
		{Name: "cross_artifact", Run: CheckCrossArtifact},
		{Name: "language", Run: CheckLanguage},
		{Name: "provenance", Run: CheckProvenance},
	}
}

// Gate runs the check catalogue and aggregates a verdict.
// Gate 는 에러를 반환하지 않음. check 내부 panic 은 WARN CHECK_ERROR 로 기록
type Gate struct {
	reg    *registry.Registry
	checks []Check
	logger *logger.Logger
}

// NewGate creates a gate with the full catalogue
func NewGate(reg *registry.Registry, log *logger.Logger) *Gate {
	return &Gate{
		reg:    reg,
		checks: Catalogue(),
		logger: log.WithField("module", "audit"),
	}
}

// WithChecks replaces the catalogue
func (g *Gate) WithChecks(checks []Check) *Gate {
	g.checks = checks
	return g
}

// Run executes every check and returns the QA report
func (g *Gate) Run(in *Inputs) Report {
	stamp := in.Now.UTC().Format(time.RFC3339)

	findings := make([]contracts.Finding, 0)
	for _, c := range g.checks {
		found := g.runCheck(c, in)
		for i := range found {
			found[i].Timestamp = stamp
		}
		findings = append(findings, found...)

		g.logger.WithFields(map[string]interface{}{
			"check":    c.Name,
			"findings": len(found),
		}).Debug("check done")
	}

	report := NewReport(in.Date.Format(contracts.DateLayout), stamp, contracts.NewVerdict(findings))

	g.logger.WithFields(map[string]interface{}{
		"status":     report.Status,
		"confidence": report.Confidence,
		"blocks":     report.Summary.Blocks,
		"flags":      report.Summary.Flags,
		"warnings":   report.Summary.Warnings,
	}).Info("audit gate verdict")

	return report
}

func (g *Gate) runCheck(c Check, in *Inputs) (out []contracts.Finding) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.WithField("check", c.Name).Warnf("check panicked: %v", r)
			out = []contracts.Finding{finding(contracts.SeverityWarn, contracts.CodeCheckError,
				fmt.Sprintf("check %s failed: %v", c.Name, r),
				map[string]interface{}{"check": c.Name, "traceback": string(debug.Stack())})}
		}
	}()
	return c.Run(g.reg, in)
}
