package service

import (
	"github.com/ZhulikovN/platform-payment-sync/internal/mapping"
	"github.com/ZhulikovN/platform-payment-sync/internal/platform"
)

// routeLead picks the pipeline and initial stage for a newly created lead.
// Evaluated only at creation time, an existing lead keeps its pipeline.
// Ordered rules, first match wins, site is the catch-all.
func routeLead(m mapping.Mapping, utm platform.Attribution) mapping.PipelineTarget {
	if m.IsPartnerSource(utm.Source) {
		return m.PartnerPipeline
	}
	if m.IsPaidSearchMedium(utm.Medium) {
		return m.SearchPipeline
	}
	return m.SitePipeline
}
