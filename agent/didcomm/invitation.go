package didcomm

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

const (
	InvitationType = "https://didcomm.org/out-of-band/1.0/invitation"

	oobParam = "oob"
)

var ErrInvitation = errors.New("invalid invitation")

// Invitation is out-of-band invitation. The ID is the connection handle until
// the both ends have their own connection IDs.
type Invitation struct {
	ID              string   `json:"@id"`
	Type            string   `json:"@type"`
	Label           string   `json:"label,omitempty"`
	DID             string   `json:"did,omitempty"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
	RecipientKeys   []string `json:"recipientKeys"`
}

func NewInvitation(id, label, did, endpoint string, verKey []byte) *Invitation {
	return &Invitation{
		ID:              id,
		Type:            InvitationType,
		Label:           label,
		DID:             did,
		ServiceEndpoint: endpoint,
		RecipientKeys:   []string{base58.Encode(verKey)},
	}
}

// URL builds the invitation URL where the invitation is base64 encoded in the
// oob query parameter, e.g. http://localhost:8081?oob=eyJ...
func (inv *Invitation) URL(domain string) string {
	return domain + "?" + oobParam + "=" + utils.EncodeB64(dto.ToJSONBytes(inv))
}

func (inv *Invitation) VerKey() []byte {
	if len(inv.RecipientKeys) == 0 {
		return nil
	}
	k, err := base58.Decode(inv.RecipientKeys[0])
	if err != nil {
		return nil
	}
	return k
}

// ParseInvitationURL parses the invitation from the URL built by URL().
func ParseInvitationURL(s string) (inv *Invitation, err error) {
	defer err2.Handle(&err, "parse invitation URL")

	u := try.To1(url.Parse(s))
	oob := u.Query().Get(oobParam)
	if oob == "" {
		return nil, ErrInvitation
	}
	data := try.To1(utils.DecodeB64(oob))
	inv = new(Invitation)
	try.To(json.Unmarshal(data, inv))
	if inv.ID == "" || inv.ServiceEndpoint == "" ||
		!strings.HasPrefix(inv.Type, "https://didcomm.org/out-of-band/") {
		return nil, ErrInvitation
	}
	return inv, nil
}
