// Package mapping holds the CRM field and enum identifiers the reconciler
// writes to, plus the routing sets that pick a pipeline for new leads. The
// mapping is built once at process start and passed explicitly into the
// services that need it, so tests can supply synthetic ids.
package mapping

// ContactFields are the custom field ids on a CRM contact.
type ContactFields struct {
	TelegramID       int64
	TelegramUsername int64
}

// LeadFields are the custom field ids on a CRM lead.
type LeadFields struct {
	Subjects          int64
	Direction         int64
	LastPaymentAmount int64
	TotalPaid         int64
	PurchaseCount     int64
	PaymentStatus     int64
	LastPaymentDate   int64
	InvoiceID         int64
	PaymentID         int64

	UTMSource   int64
	UTMMedium   int64
	UTMCampaign int64
	UTMContent  int64
	UTMTerm     int64
	YMUID       int64
}

// PipelineTarget is a pipeline and the stage new auto-payment leads land in.
type PipelineTarget struct {
	PipelineID int64
	StatusID   int64
}

// Mapping is the immutable CRM id configuration.
type Mapping struct {
	ContactFields ContactFields
	LeadFields    LeadFields

	// Subject course name -> multiselect enum id. Unknown names are dropped.
	Subjects map[string]int64
	// Direction (exam track) name -> select enum id.
	Directions map[string]int64

	// Routing targets. Site is the catch-all.
	SitePipeline    PipelineTarget
	PartnerPipeline PipelineTarget
	SearchPipeline  PipelineTarget

	// utm_source values routed to the partner pipeline.
	PartnerSources map[string]struct{}
	// utm_medium values routed to the paid-search pipeline.
	PaidSearchMediums map[string]struct{}

	// Stage ids in which a lead no longer counts as active, across all
	// pipelines: won/lost plus the per-pipeline auto-payment stages.
	ClosedStatusIDs map[int64]struct{}
}

// SubjectEnumIDs maps subject names to enum ids, dropping unknown names and
// duplicates while keeping first-seen order.
func (m Mapping) SubjectEnumIDs(names []string) []int64 {
	seen := make(map[int64]struct{}, len(names))
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, ok := m.Subjects[name]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// DirectionEnumID maps a direction name to its enum id, zero when unknown.
func (m Mapping) DirectionEnumID(name string) int64 {
	return m.Directions[name]
}

// IsClosedStatus reports whether a stage id is in the closed-state set.
func (m Mapping) IsClosedStatus(statusID int64) bool {
	_, ok := m.ClosedStatusIDs[statusID]
	return ok
}

// IsPartnerSource reports whether a utm_source routes to the partner pipeline.
func (m Mapping) IsPartnerSource(source string) bool {
	_, ok := m.PartnerSources[source]
	return ok
}

// IsPaidSearchMedium reports whether a utm_medium routes to the paid-search
// pipeline.
func (m Mapping) IsPaidSearchMedium(medium string) bool {
	_, ok := m.PaidSearchMediums[medium]
	return ok
}

// Set builds a membership set from a list of values, skipping empties.
func Set(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

// IDSet builds a membership set of stage ids, skipping zeros.
func IDSet(ids ...int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}
