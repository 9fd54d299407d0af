package entity

// Lead identifies the person on the other end of a Conversation.
type Lead struct {
	id          LeadID
	orgID       OrganizationID
	phone       string
	displayName string
}

func NewLead(id LeadID, orgID OrganizationID, phone, displayName string) *Lead {
	return &Lead{id: id, orgID: orgID, phone: phone, displayName: displayName}
}

func (l *Lead) ID() LeadID              { return l.id }
func (l *Lead) OrgID() OrganizationID   { return l.orgID }
func (l *Lead) Phone() string           { return l.phone }
func (l *Lead) DisplayName() string     { return l.displayName }

// Integration binds a provider-side phone_number_id to an organization
// (spec §4.B resolve_integration).
type Integration struct {
	id            IntegrationID
	orgID         OrganizationID
	phoneNumberID string
	verifyToken   string
}

func NewIntegration(id IntegrationID, orgID OrganizationID, phoneNumberID, verifyToken string) *Integration {
	return &Integration{id: id, orgID: orgID, phoneNumberID: phoneNumberID, verifyToken: verifyToken}
}

func (i *Integration) ID() IntegrationID     { return i.id }
func (i *Integration) OrgID() OrganizationID { return i.orgID }
func (i *Integration) PhoneNumberID() string { return i.phoneNumberID }
func (i *Integration) VerifyToken() string   { return i.verifyToken }
