package webhook

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// CRM custom field codes recognized in lead payloads.
const (
	fieldPhone      = "PHONE"
	fieldAddress    = "ADDRESS"
	fieldAddressAlt = "ADRES"
	fieldCompany    = "COMPANY"
	fieldDealer     = "DEALER"
	fieldZone       = "ZONE"
	fieldOrderCode  = "ORDER_CODE"
	fieldOrderAlt   = "ORDER"
	fieldContact    = "CONTACT_NAME"
	fieldContactAlt = "CONTACT"
)

type fieldValue struct {
	Value any `json:"value"`
}

type customField struct {
	FieldCode string       `json:"field_code"`
	Values    []fieldValue `json:"values"`
}

// first returns the field's first value as text. The CRM serializes some
// numeric fields without quotes, so both forms are accepted.
func (f customField) first() string {
	if len(f.Values) == 0 {
		return ""
	}
	switch v := f.Values[0].Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// leadPayload is one lead entry from the CRM webhook, JSON or form encoded.
type leadPayload struct {
	ID                int64         `json:"id"`
	StatusID          int64         `json:"status_id"`
	Name              string        `json:"name"`
	ResponsibleUserID *int64        `json:"responsible_user_id"`
	CompanyName       string        `json:"company_name"`
	CustomFields      []customField `json:"custom_fields_values"`
}

func (l leadPayload) customField(codes ...string) string {
	for _, f := range l.CustomFields {
		for _, code := range codes {
			if f.FieldCode == code {
				if v := f.first(); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func (l leadPayload) phone() string       { return l.customField(fieldPhone) }
func (l leadPayload) address() string     { return l.customField(fieldAddress, fieldAddressAlt) }
func (l leadPayload) zoneHint() string    { return l.customField(fieldZone) }
func (l leadPayload) orderCode() string   { return l.customField(fieldOrderCode, fieldOrderAlt) }
func (l leadPayload) contactName() string { return l.customField(fieldContact, fieldContactAlt) }

func (l leadPayload) dealerName() string {
	if l.CompanyName != "" {
		return l.CompanyName
	}
	return l.customField(fieldCompany, fieldDealer)
}

// payload is the decoded webhook body: status changes plus newly added leads.
type payload struct {
	StatusChanges []leadPayload
	Added         []leadPayload
}

func (p payload) empty() bool {
	return len(p.StatusChanges) == 0 && len(p.Added) == 0
}

type jsonBody struct {
	Leads struct {
		Status []leadPayload `json:"status"`
		Add    []leadPayload `json:"add"`
	} `json:"leads"`
}

// parsePayload decodes a webhook body. The CRM posts either JSON or
// form-urlencoded bodies with bracketed keys like leads[status][0][id].
func parsePayload(contentType string, body []byte) (payload, error) {
	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		return parseFormPayload(body)
	}
	return parseJSONPayload(body)
}

func parseJSONPayload(body []byte) (payload, error) {
	var decoded jsonBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return payload{}, fmt.Errorf("decode webhook json: %w", err)
	}
	return payload{
		StatusChanges: decoded.Leads.Status,
		Added:         decoded.Leads.Add,
	}, nil
}

// formLeadKey matches leads[<section>][<index>][<field>]. Nested custom field
// keys collapse to their innermost name, matching how the CRM flattens them.
var formLeadKey = regexp.MustCompile(`^leads\[(status|add)\]\[(\d+)\]\[(.+)\]$`)

func parseFormPayload(body []byte) (payload, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return payload{}, fmt.Errorf("decode webhook form: %w", err)
	}

	type slot struct {
		section string
		index   int
	}
	entries := make(map[slot]map[string]string)

	for key, vals := range values {
		m := formLeadKey.FindStringSubmatch(key)
		if m == nil || len(vals) == 0 {
			continue
		}
		index, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		field := m[3]
		if i := strings.LastIndex(field, "["); i >= 0 {
			field = strings.TrimSuffix(field[i+1:], "]")
		}

		s := slot{section: m[1], index: index}
		if entries[s] == nil {
			entries[s] = make(map[string]string)
		}
		entries[s][field] = vals[0]
	}

	var p payload
	for s, fields := range entries {
		lead := leadFromForm(fields)
		if lead.ID == 0 {
			continue
		}
		switch s.section {
		case "status":
			p.StatusChanges = append(p.StatusChanges, lead)
		case "add":
			p.Added = append(p.Added, lead)
		}
	}
	return p, nil
}

func leadFromForm(fields map[string]string) leadPayload {
	lead := leadPayload{
		Name:        fields["name"],
		CompanyName: fields["company_name"],
	}
	lead.ID, _ = strconv.ParseInt(fields["id"], 10, 64)
	lead.StatusID, _ = strconv.ParseInt(fields["status_id"], 10, 64)
	if v, err := strconv.ParseInt(fields["responsible_user_id"], 10, 64); err == nil && v > 0 {
		lead.ResponsibleUserID = &v
	}

	// Form bodies carry custom fields flattened to their innermost key.
	for code, value := range map[string]string{
		fieldPhone:     fields["phone"],
		fieldAddress:   fields["address"],
		fieldZone:      fields["zone"],
		fieldOrderCode: fields["order_code"],
		fieldContact:   fields["contact_name"],
	} {
		if value != "" {
			lead.CustomFields = append(lead.CustomFields, customField{
				FieldCode: code,
				Values:    []fieldValue{{Value: value}},
			})
		}
	}
	return lead
}
