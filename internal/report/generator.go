package report

import (
	"fmt"
	"strings"
	"time"

	"moveguard/internal/verify"
)

// Generator renders a verification report into a human-readable document.
type Generator interface {
	Generate(report *verify.VerificationReport) (string, error)
}

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

func (g *MarkdownGenerator) Generate(rep *verify.VerificationReport) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# 📄 Verification Report: `%s`\n\n", rep.Target.ID()))
	b.WriteString(fmt.Sprintf("**Scan ID**: `%s`\n\n", rep.ScanID))
	b.WriteString(fmt.Sprintf("**Kind**: %s\n\n", rep.Target.Kind))
	b.WriteString(fmt.Sprintf("**Started**: %s\n\n", rep.StartedAt.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("**Duration**: %s\n\n", rep.Duration))

	b.WriteString(fmt.Sprintf("## %s Risk Verdict: %s\n\n", riskIcon(string(rep.Risk.Level)), rep.Risk.Level))
	for _, line := range rep.Risk.Rationale {
		b.WriteString(fmt.Sprintf("- %s\n", line))
	}
	b.WriteString("\n")

	b.WriteString("## 🔎 Evidence\n\n")
	b.WriteString(fmt.Sprintf("**Tier**: `%s` | **Status**: %s\n\n", rep.Tier, rep.Status))
	b.WriteString("| Claim | Status | Confidence | Sources |\n")
	b.WriteString("|-------|--------|------------|--------|\n")
	for _, c := range rep.Claims {
		sources := make([]string, 0, len(c.Confirmations))
		for _, conf := range c.Confirmations {
			sources = append(sources, conf.Source)
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			c.Type, c.Status, c.Confidence, strings.Join(sources, ", ")))
	}
	b.WriteString("\n")

	if len(rep.Discrepancies) > 0 {
		b.WriteString("## ⚠️ Discrepancies\n\n")
		for _, d := range rep.Discrepancies {
			b.WriteString(fmt.Sprintf("- **%s**: ", d.Type))
			parts := make([]string, 0, len(d.Sources))
			for _, src := range d.Sources {
				parts = append(parts, fmt.Sprintf("`%s` reports `%s`", src, d.Values[src]))
			}
			b.WriteString(strings.Join(parts, " vs ") + "\n")
		}
		b.WriteString("\n")
	}

	if caps := rep.Capabilities; caps != nil {
		b.WriteString("## 🔑 Capabilities\n\n")
		b.WriteString(fmt.Sprintf("- Mint: %s | Burn: %s | Freeze: %s | Transfer: %s\n",
			yesNo(caps.MintRef), yesNo(caps.BurnRef), yesNo(caps.FreezeRef), yesNo(caps.TransferRef)))
		if caps.Owner != "" {
			b.WriteString(fmt.Sprintf("- Owner: `%s`\n", caps.Owner))
		}
		if caps.Supply != "" {
			b.WriteString(fmt.Sprintf("- Supply: %s", caps.Supply))
			if caps.MaxSupply != "" {
				b.WriteString(fmt.Sprintf(" (max %s)", caps.MaxSupply))
			}
			b.WriteString("\n")
		}
		if caps.Decimals >= 0 {
			b.WriteString(fmt.Sprintf("- Decimals: %d\n", caps.Decimals))
		}
		for _, h := range caps.Hooks {
			b.WriteString(fmt.Sprintf("- Dispatch hook (%s): `%s`\n", h.Kind, h.Key()))
		}
		b.WriteString("\n")
	}

	if len(rep.Findings) > 0 {
		b.WriteString("## 🛡️ Findings\n\n")
		for _, f := range rep.Findings {
			b.WriteString(fmt.Sprintf("### %s %s `%s`\n\n", severityIcon(string(f.Severity)), strings.ToUpper(string(f.Severity)), f.ID))
			b.WriteString(fmt.Sprintf("%s\n\n", f.Description))
			b.WriteString(fmt.Sprintf("**Confidence**: %.2f | **Evidence**: %s\n\n", f.Confidence, f.EvidenceKind))
			if len(f.MatchedPatterns) > 0 {
				b.WriteString(fmt.Sprintf("**Matched**: `%s`\n\n", strings.Join(f.MatchedPatterns, "`, `")))
			}
			if len(f.Locations) > 0 {
				b.WriteString(fmt.Sprintf("**Locations**: `%s`\n\n", strings.Join(f.Locations, "`, `")))
			}
			b.WriteString("---\n\n")
		}
	} else {
		b.WriteString("## ✅ No findings\n\n")
	}

	if beh := rep.Behavior; beh != nil && beh.Sampled {
		b.WriteString("## 📈 Behavior\n\n")
		b.WriteString(fmt.Sprintf("- Sampled transactions: %d\n", beh.SampledCount))
		if len(beh.Invoked) > 0 {
			b.WriteString(fmt.Sprintf("- Invoked: `%s`\n", strings.Join(beh.Invoked, "`, `")))
		}
		if len(beh.Phantom) > 0 {
			b.WriteString(fmt.Sprintf("- 🔴 Phantom entrypoints: `%s`\n", strings.Join(beh.Phantom, "`, `")))
		}
		b.WriteString("\n")
	}

	if len(rep.SourceErrors) > 0 {
		b.WriteString("<details>\n<summary>Source errors</summary>\n\n")
		for src, msg := range rep.SourceErrors {
			b.WriteString(fmt.Sprintf("- `%s`: %s\n", src, msg))
		}
		b.WriteString("\n</details>\n")
	}

	return b.String(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func riskIcon(level string) string {
	switch level {
	case "DANGEROUS":
		return "🔴"
	case "ELEVATED_RISK":
		return "🟠"
	case "OPAQUE_BUT_ACTIVE":
		return "🟡"
	case "SAFE_DYNAMIC":
		return "🔵"
	case "SAFE_STATIC":
		return "🟢"
	default:
		return "⚪"
	}
}

func severityIcon(severity string) string {
	switch severity {
	case "critical":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	case "low":
		return "🟢"
	default:
		return "⚪"
	}
}
