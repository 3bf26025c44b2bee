package sellermode

import (
	"fmt"
	"strings"
)

type Mode string

const (
	Normal           Mode = "NORMAL"
	Watch            Mode = "WATCH"
	StabilityLimited Mode = "STABILITY_LIMITED"
	QualityIssue     Mode = "QUALITY_ISSUE"
	FinancialRisk    Mode = "FINANCIAL_RISK"
	Isolated         Mode = "ISOLATED"
)

var modes = map[Mode]bool{
	Normal: true, Watch: true, StabilityLimited: true,
	QualityIssue: true, FinancialRisk: true, Isolated: true,
}

func Parse(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !modes[m] {
		return "", fmt.Errorf("unknown seller mode %q", s)
	}
	return m, nil
}
