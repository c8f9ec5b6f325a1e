package didcomm

// CredentialAttribute for credential value
type CredentialAttribute struct {
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// ProofAttribute for proof request attributes. CredDefID is the restriction
// the presented value must satisfy.
type ProofAttribute struct {
	ID        string `json:"-"`
	Name      string `json:"name,omitempty"`
	CredDefID string `json:"credDefId,omitempty"`
}

// ProofValue for proof values
type ProofValue struct {
	Name      string `json:"name,omitempty"`
	Value     string `json:"value,omitempty"`
	CredDefID string `json:"credDefId,omitempty"`
}

// SelectedCredential tells which held credential satisfies the requested
// attribute.
type SelectedCredential struct {
	Attribute    string
	CredentialID string
	CredDefID    string
	Value        string
}

// Selection is the holder's answer to the proof request. It's empty when some
// of the requested attributes cannot be satisfied.
type Selection struct {
	Credentials []SelectedCredential
}

func (s Selection) IsEmpty() bool {
	return len(s.Credentials) == 0
}

// Values converts the selection to the presentation values.
func (s Selection) Values() []ProofValue {
	values := make([]ProofValue, 0, len(s.Credentials))
	for _, c := range s.Credentials {
		values = append(values, ProofValue{
			Name:      c.Attribute,
			Value:     c.Value,
			CredDefID: c.CredDefID,
		})
	}
	return values
}

// ConnectionBody is the body of the DIDExchange request and response.
type ConnectionBody struct {
	Label    string `json:"label"`
	DID      string `json:"did"`
	Endpoint string `json:"endpoint"`
}

type OfferBody struct {
	CredDefID  string                `json:"cred_def_id"`
	Attributes []CredentialAttribute `json:"attributes"`
}

type IssueBody struct {
	CredDefID  string                `json:"cred_def_id"`
	Attributes []CredentialAttribute `json:"attributes"`
}

type ProofRequestBody struct {
	Name       string           `json:"name"`
	Attributes []ProofAttribute `json:"requested_attributes"`
}

type PresentationBody struct {
	Values []ProofValue `json:"values"`
}

type AckBody struct {
	Status string `json:"status"`
}
