package metrics

import "time"

// ProviderCall records one call to an external provider (ocr, ai, storage).
func ProviderCall(provider string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ProviderCallsTotal.WithLabelValues(provider, status).Inc()
	ProviderCallDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// AIUsage records token usage and cost for one AI call.
func AIUsage(inputTokens, outputTokens, costCents int) {
	AITokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	AITokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	AICostCentsTotal.Add(float64(costCents))
}

// Stage records how long an analysis stage took.
func Stage(stage string, start time.Time) {
	PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Credit records a consume or refund result.
func Credit(op string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	CreditsTotal.WithLabelValues(op, result).Inc()
}
