package utils

import "encoding/base64"

// DecodeB64 decodes URL safe base64 with or without padding. Out-of-band
// invitations come in both forms.
func DecodeB64(str string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(str)
	if err != nil {
		data, err = base64.RawURLEncoding.DecodeString(str)
	}
	return data, err
}

func EncodeB64(data []byte) string {
	return base64.URLEncoding.EncodeToString(data)
}
