package amocrm

// amoCRM v4 wire structures. Custom fields travel as
// {field_id|field_code, values: [{value|enum_id, enum_code}]} lists on both
// contacts and leads.

// FieldValue is one value of a custom field.
type FieldValue struct {
	Value    any    `json:"value,omitempty"`
	EnumID   int64  `json:"enum_id,omitempty"`
	EnumCode string `json:"enum_code,omitempty"`
}

// CustomField addresses a custom field either by numeric id or by the
// well-known code (PHONE, EMAIL).
type CustomField struct {
	FieldID   int64        `json:"field_id,omitempty"`
	FieldCode string       `json:"field_code,omitempty"`
	Values    []FieldValue `json:"values"`
}

// TextField builds a single-value custom field addressed by id.
func TextField(fieldID int64, value any) CustomField {
	return CustomField{FieldID: fieldID, Values: []FieldValue{{Value: value}}}
}

// EnumField builds a single-enum custom field addressed by id.
func EnumField(fieldID int64, enumID int64) CustomField {
	return CustomField{FieldID: fieldID, Values: []FieldValue{{EnumID: enumID}}}
}

// MultiEnumField builds a multiselect custom field addressed by id.
func MultiEnumField(fieldID int64, enumIDs []int64) CustomField {
	values := make([]FieldValue, 0, len(enumIDs))
	for _, id := range enumIDs {
		values = append(values, FieldValue{EnumID: id})
	}
	return CustomField{FieldID: fieldID, Values: values}
}

// CodeField builds a single-value custom field addressed by code.
func CodeField(code, enumCode string, value any) CustomField {
	return CustomField{FieldCode: code, Values: []FieldValue{{Value: value, EnumCode: enumCode}}}
}

// Contact is a CRM person record.
type Contact struct {
	ID                int64         `json:"id,omitempty"`
	Name              string        `json:"name,omitempty"`
	ResponsibleUserID int64         `json:"responsible_user_id,omitempty"`
	CustomFields      []CustomField `json:"custom_fields_values,omitempty"`
}

// FieldString returns the first value of a custom field by id, or "".
func (c Contact) FieldString(fieldID int64) string {
	return fieldString(c.CustomFields, fieldID, "")
}

// FieldStringByCode returns the first value of a custom field by code, or "".
func (c Contact) FieldStringByCode(code string) string {
	return fieldString(c.CustomFields, 0, code)
}

// EntityRef is a linked entity reference inside an _embedded block.
type EntityRef struct {
	ID int64 `json:"id"`
}

// LeadEmbedded is the linked-entities block of a lead fetched with
// with=contacts.
type LeadEmbedded struct {
	Contacts []EntityRef `json:"contacts"`
}

// EmbeddedContacts builds a contact-links block for the given contact ids.
func EmbeddedContacts(contactIDs ...int64) *LeadEmbedded {
	refs := make([]EntityRef, 0, len(contactIDs))
	for _, id := range contactIDs {
		refs = append(refs, EntityRef{ID: id})
	}
	return &LeadEmbedded{Contacts: refs}
}

// Lead is a CRM sales opportunity.
type Lead struct {
	ID                int64         `json:"id,omitempty"`
	Name              string        `json:"name,omitempty"`
	Price             int64         `json:"price"`
	PipelineID        int64         `json:"pipeline_id,omitempty"`
	StatusID          int64         `json:"status_id,omitempty"`
	ResponsibleUserID int64         `json:"responsible_user_id,omitempty"`
	UpdatedAt         int64         `json:"updated_at,omitempty"`
	IsDeleted         bool          `json:"is_deleted,omitempty"`
	CustomFields      []CustomField `json:"custom_fields_values,omitempty"`
	Embedded          *LeadEmbedded `json:"_embedded,omitempty"`
}

// ContactIDs lists the ids of contacts linked to the lead, when the lead was
// fetched with its contacts embedded.
func (l Lead) ContactIDs() []int64 {
	if l.Embedded == nil {
		return nil
	}
	ids := make([]int64, 0, len(l.Embedded.Contacts))
	for _, ref := range l.Embedded.Contacts {
		ids = append(ids, ref.ID)
	}
	return ids
}

// LinkedTo reports whether the lead is linked to the given contact.
func (l Lead) LinkedTo(contactID int64) bool {
	for _, id := range l.ContactIDs() {
		if id == contactID {
			return true
		}
	}
	return false
}

// FieldInt returns the first value of a numeric custom field by id, or 0.
func (l Lead) FieldInt(fieldID int64) int64 {
	return fieldInt(l.CustomFields, fieldID)
}

// CreateLead is the payload for creating a lead linked to a contact.
type CreateLead struct {
	Name         string
	Price        int64
	PipelineID   int64
	StatusID     int64
	ContactID    int64
	CustomFields []CustomField
}

// UpdateLead is a partial lead update. Nil pointers leave fields untouched.
type UpdateLead struct {
	Price        *int64
	StatusID     *int64
	CustomFields []CustomField
}
