package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"SlaEscrow/internal/model"
	"SlaEscrow/internal/validation"
)

// FormatValidationReport formats the outcome of one validation sweep.
func FormatValidationReport(now time.Time, results []*validation.Result, err error) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🛡 <b>SLA validation</b> | %s\n\n", now.UTC().Format("2006-01-02 15:04")))
	if len(results) == 0 && err == nil {
		b.WriteString("No periods were due.\n")
		return b.String()
	}

	for _, r := range results {
		icon := "✅"
		if r.Status.Kind == model.StatusNotRespected {
			icon = "❌"
		}
		b.WriteString(fmt.Sprintf("%s <code>%s</code> period %d: SLI %s\n",
			icon, shortID(r.AgreementID.String()), r.PeriodID, r.Status.Value.String()))
		if r.Reward > 0 {
			b.WriteString(fmt.Sprintf("   %d moved %s → %s (deviation %s)\n", r.Reward, r.From, r.To, r.Deviation.String()))
		}
	}

	if err != nil {
		b.WriteString(fmt.Sprintf("\n⚠️ <b>Failures:</b>\n%s\n", html.EscapeString(err.Error())))
	}
	return b.String()
}

// FormatAgreementStatus formats one agreement for display.
func FormatAgreementStatus(ag *model.Agreement, phase model.Phase) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📦 <b>Agreement</b> <code>%s</code>\n\n", ag.ID))
	b.WriteString(fmt.Sprintf("SLO: %s %s\n", ag.Slo.Comparator, ag.Slo.Value.String()))
	b.WriteString(fmt.Sprintf("Source: %s\n", html.EscapeString(ag.OracleSource)))
	b.WriteString(fmt.Sprintf("Phase: %s\n", phase))
	b.WriteString(fmt.Sprintf("Periods: %d × %s from %s\n", ag.Schedule.Count, ag.Schedule.Length,
		time.Unix(ag.Schedule.Start, 0).UTC().Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Provider pool: %d (%d PT)\n", ag.ProviderPool, ag.ProviderShares))
	b.WriteString(fmt.Sprintf("User pool: %d (%d UT)\n", ag.UserPool, ag.UserShares))
	b.WriteString(fmt.Sprintf("Leverage: %s\n", ag.Leverage.String()))

	var respected, breached int
	for _, s := range ag.Statuses {
		switch s.Kind {
		case model.StatusRespected:
			respected++
		case model.StatusNotRespected:
			breached++
		}
	}
	b.WriteString(fmt.Sprintf("Verified: %d respected, %d breached, %d pending\n",
		respected, breached, len(ag.Statuses)-respected-breached))
	return b.String()
}

// FormatAgreementList formats a one-line summary per agreement.
func FormatAgreementList(ags []*model.Agreement, phaseOf func(*model.Agreement) model.Phase) string {
	if len(ags) == 0 {
		return "No agreements deployed."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>Agreements</b> (%d)\n\n", len(ags)))
	for _, ag := range ags {
		b.WriteString(fmt.Sprintf("• <code>%s</code> %s | P %d / U %d | %d pending\n",
			ag.ID, phaseOf(ag), ag.ProviderPool, ag.UserPool, len(ag.Statuses.Pending())))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
